package domain

import "time"

type UserID string
type MessageID string
type AlertID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserRole distinguishes who is logging in, not who is speaking in a chat.
type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleTeacher UserRole = "teacher"
)

// Persona identifies one of the fixed conversational personalities.
type Persona string

const (
	PersonaTeacher  Persona = "TEACHER"
	PersonaFriend   Persona = "FRIEND"
	PersonaExpert   Persona = "EXPERT"
	PersonaListener Persona = "LISTENER"
)

type Timestamp = time.Time
