package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
)

// User is a known account. Guests never have one.
type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
	Role  string `db:"role"`
}

func (u *User) IsStaff() bool { return u != nil && u.Role == RoleStaff }

// AsOwner is the quote/order owner for requests made by u.
func (u *User) AsOwner() Owner {
	if u == nil {
		return GuestOwner()
	}
	return UserOwner(u.ID)
}
