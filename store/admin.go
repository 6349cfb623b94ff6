package store

// AdminMembership links a department to an admin's notification channel.
// Read-only to the dispatcher.
type AdminMembership struct {
	ID           int32
	DepartmentID int32
	AdminName    string
	ChatID       int64 // Telegram chat identifier of the admin
	CreatedTs    int64
}
