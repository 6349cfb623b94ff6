package store

// User is the sending end-user of a support message.
type User struct {
	UID            string
	FullName       string
	TelegramUserID int64
	Email          *string
	CreatedTs      int64
	UpdatedTs      int64
}

// UpsertUser creates or refreshes a user keyed by UID.
type UpsertUser struct {
	UID            string
	FullName       string
	TelegramUserID int64
	Email          *string
}
