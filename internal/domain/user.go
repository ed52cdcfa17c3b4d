package domain

// Role identifies what an authenticated identity may do.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
	// RoleSystem is used by internal jobs such as the expiry sweeper.
	RoleSystem Role = "system"
)

// IsValid returns true for roles an identity token may carry.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// Actor is the resolved identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is the identity used by background jobs.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// User is a directory record for customers, technicians and admins.
type User struct {
	ID            string   `json:"id" bson:"_id"`
	Name          string   `json:"name" bson:"name"`
	Email         string   `json:"email" bson:"email"`
	Phone         string   `json:"phone" bson:"phone"`
	Role          Role     `json:"role" bson:"role"`
	IsActive      bool     `json:"isActive" bson:"isActive"`
	ServiceTypes  []string `json:"serviceTypes" bson:"serviceTypes"`
	CompletedJobs int      `json:"completedJobs" bson:"completedJobs"`
}

// IsActiveTechnician reports whether the user can be assigned work.
func (u *User) IsActiveTechnician() bool {
	return u.Role == RoleTechnician && u.IsActive
}

// Offers reports whether the technician lists serviceType among their services.
func (u *User) Offers(serviceType string) bool {
	for _, s := range u.ServiceTypes {
		if s == serviceType {
			return true
		}
	}
	return false
}
