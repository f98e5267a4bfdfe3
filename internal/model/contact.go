package model

import "time"

type Step string

const (
	StepName        Step = "name"
	StepDNI         Step = "dni"
	StepStudentCode Step = "student_code"
)

// RegistrationData holds the answers collected so far.
type RegistrationData struct {
	Name string `json:"name,omitempty"`
	DNI  string `json:"dni,omitempty"`
}

// RegistrationState exists only while a sender is registering.
type RegistrationState struct {
	Step      Step             `json:"step"`
	Data      RegistrationData `json:"data"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type Profile struct {
	Name        string `json:"name"`
	DNI         string `json:"dni"`
	StudentCode string `json:"studentCode"`
}

type Contact struct {
	PhoneNumber  string             `json:"phoneNumber"`
	MessageCount int64              `json:"messageCount"`
	IsRegistered bool               `json:"isRegistered"`
	Profile      *Profile           `json:"profile,omitempty"`
	Registration *RegistrationState `json:"registrationState,omitempty"`
	OptedOut     bool               `json:"optedOut"`
	RegisteredAt *time.Time         `json:"registeredAt,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastSeenAt   time.Time          `json:"lastSeenAt"`
}

// HistoryEntry is one inbound message kept in a contact's history.
type HistoryEntry struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type Stats struct {
	TotalContacts int64 `json:"totalContacts"`
	TotalMessages int64 `json:"totalMessages"`
}
