package models

// FullName holds a user's first and last name.
type FullName struct {
	FirstName string `json:"firstName" bson:"firstName"`
	LastName  string `json:"lastName" bson:"lastName"`
}

// Address is a user's postal address.
type Address struct {
	Street  string `json:"street" bson:"street"`
	City    string `json:"city" bson:"city"`
	Country string `json:"country" bson:"country"`
}

// User is the root document. UserID is the business key; storage ids never leave the
// repositories.
type User struct {
	UserID   int64    `json:"userId" bson:"userId"`
	Username string   `json:"username" bson:"username"`
	Password string   `json:"-" bson:"password,omitempty"` // bcrypt hash, write-only
	FullName FullName `json:"fullName" bson:"fullName"`
	Age      int      `json:"age" bson:"age"`
	Email    string   `json:"email" bson:"email"`
	IsActive bool     `json:"isActive" bson:"isActive"`
	Hobbies  []string `json:"hobbies" bson:"hobbies"`
	Address  Address  `json:"address" bson:"address"`
	Orders   []Order  `json:"orders" bson:"orders"`
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Username *string
	Password *string
	FullName *FullName
	Age      *int
	Email    *string
	IsActive *bool
	Hobbies  *[]string
	Address  *Address
}

// IsEmpty reports whether the update changes nothing.
func (u *UserUpdate) IsEmpty() bool {
	return u == nil || (u.Username == nil && u.Password == nil && u.FullName == nil &&
		u.Age == nil && u.Email == nil && u.IsActive == nil && u.Hobbies == nil && u.Address == nil)
}

// Apply copies the set fields of u onto user.
func (u *UserUpdate) Apply(user *User) {
	if u == nil {
		return
	}
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.Password != nil {
		user.Password = *u.Password
	}
	if u.FullName != nil {
		user.FullName = *u.FullName
	}
	if u.Age != nil {
		user.Age = *u.Age
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
	if u.Hobbies != nil {
		user.Hobbies = append([]string{}, (*u.Hobbies)...)
	}
	if u.Address != nil {
		user.Address = *u.Address
	}
}
