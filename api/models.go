package api

import "time"

// AchievementStatus is the verification workflow state of an achievement.
type AchievementStatus string

const (
	StatusDraft     AchievementStatus = "draft"
	StatusSubmitted AchievementStatus = "submitted"
	StatusVerified  AchievementStatus = "verified"
	StatusRejected  AchievementStatus = "rejected"
	StatusDeleted   AchievementStatus = "deleted"
)

// Profile is the signed-in user as returned by the backend.
type Profile struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// Attachment is a file linked to an achievement.
type Attachment struct {
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileType   string    `json:"fileType,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Achievement is a student achievement and its verification state.
type Achievement struct {
	ID              string            `json:"id"`
	StudentID       string            `json:"studentId"`
	AchievementType string            `json:"achievementType"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Details         map[string]any    `json:"details,omitempty"`
	Attachments     []Attachment      `json:"attachments,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Points          int               `json:"points"`
	Status          AchievementStatus `json:"status"`
	RejectionNote   string            `json:"rejectionNote,omitempty"`
	VerifiedBy      string            `json:"verifiedBy,omitempty"`
	SubmittedAt     *time.Time        `json:"submittedAt,omitempty"`
	VerifiedAt      *time.Time        `json:"verifiedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// AchievementInput is the writable part of an achievement.
type AchievementInput struct {
	AchievementType string         `json:"achievementType"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Points          int            `json:"points,omitempty"`
}

// HistoryEntry is one status transition of an achievement.
type HistoryEntry struct {
	Status    AchievementStatus `json:"status"`
	ChangedBy string            `json:"changedBy"`
	Note      string            `json:"note,omitempty"`
	ChangedAt time.Time         `json:"changedAt"`
}

// Page is one page of a list response.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Student is a student record with its academic advisor.
type Student struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	StudentID    string `json:"studentId"`
	Name         string `json:"name"`
	ProgramStudy string `json:"programStudy,omitempty"`
	AcademicYear string `json:"academicYear,omitempty"`
	AdvisorID    string `json:"advisorId,omitempty"`
}

// Lecturer is a lecturer who may advise students.
type Lecturer struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	LecturerID string `json:"lecturerId"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}

// StudentPoints ranks a student by accumulated verified points.
type StudentPoints struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Points    int    `json:"points"`
}

// Statistics summarizes achievements visible to the caller.
type Statistics struct {
	Total       int             `json:"total"`
	ByStatus    map[string]int  `json:"byStatus"`
	ByType      map[string]int  `json:"byType"`
	TopStudents []StudentPoints `json:"topStudents,omitempty"`
}

// StudentReport is the per-student achievement report.
type StudentReport struct {
	Student      Student        `json:"student"`
	Achievements []Achievement  `json:"achievements"`
	TotalPoints  int            `json:"totalPoints"`
	ByStatus     map[string]int `json:"byStatus"`
}
