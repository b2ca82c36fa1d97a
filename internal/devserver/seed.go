package devserver

import (
	"github.com/MrEthical07/authclient/api"
	"github.com/MrEthical07/authclient/jwt"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Seeded accounts.
const (
	AdminUsername    = "admin"
	LecturerUsername = "dosen1"
	StudentUsername  = "mhs1"
	Student2Username = "mhs2"
)

type account struct {
	id       string
	username string
	password string
	name     string
	email    string
	role     jwt.Role
}

func (a *account) identity() jwt.Identity {
	return jwt.Identity{
		UserID:   a.id,
		Username: a.username,
		Name:     a.name,
		Email:    a.email,
		Role:     a.role,
	}
}

func (a *account) profile() api.Profile {
	return api.Profile{
		ID:          a.id,
		Username:    a.username,
		FullName:    a.name,
		Email:       a.email,
		Role:        string(a.role),
		Permissions: permissionsFor(a.role),
	}
}

func permissionsFor(role jwt.Role) []string {
	switch role {
	case jwt.RoleAdmin:
		return []string{"achievement:read", "achievement:verify", "user:manage", "report:read"}
	case jwt.RoleLecturer:
		return []string{"achievement:read", "achievement:verify", "report:read"}
	default:
		return []string{"achievement:read", "achievement:write"}
	}
}

func (s *Server) seed() {
	for _, a := range []*account{
		{id: "u-admin", username: AdminUsername, name: "Administrator", email: "admin@kampus.ac.id", role: jwt.RoleAdmin},
		{id: "u-dosen1", username: LecturerUsername, name: "Dr. Sari Wulandari", email: "sari@kampus.ac.id", role: jwt.RoleLecturer},
		{id: "u-mhs1", username: StudentUsername, name: "Budi Santoso", email: "budi@student.kampus.ac.id", role: jwt.RoleStudent},
		{id: "u-mhs2", username: Student2Username, name: "Dewi Lestari", email: "dewi@student.kampus.ac.id", role: jwt.RoleStudent},
	} {
		a.password = DefaultPassword
		s.accounts[a.username] = a
		s.accountsByID[a.id] = a
	}

	s.lecturers["l-1"] = &api.Lecturer{ID: "l-1", UserID: "u-dosen1", LecturerID: "198701012015041001", Name: "Dr. Sari Wulandari", Department: "Informatika"}

	s.students["s-1"] = &api.Student{ID: "s-1", UserID: "u-mhs1", StudentID: "434221001", Name: "Budi Santoso", ProgramStudy: "Informatika", AcademicYear: "2022", AdvisorID: "l-1"}
	s.students["s-2"] = &api.Student{ID: "s-2", UserID: "u-mhs2", StudentID: "434221002", Name: "Dewi Lestari", ProgramStudy: "Sistem Informasi", AcademicYear: "2022"}
}
