package domain

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	// RawRole is stored as entered by whoever created the account; it may be an
	// Arabic or English alias. Use Role() for access checks.
	RawRole   string `json:"raw_role"`
	BranchID  int64  `json:"branch_id"`
	Active    bool   `json:"active"`
	CreatedOn string `json:"created_on"`
}

func (u *User) Role() Role {
	return NormalizeRole(u.RawRole)
}
