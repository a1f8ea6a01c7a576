package apperr

var (
	// Domain errors returned by the service package
	ErrUserNotFound    = NotFound("user not found")
	ErrThreadNotFound  = NotFound("thread not found")
	ErrMessageNotFound = NotFound("message not found")
	ErrUpdateNotFound  = NotFound("update not found")

	ErrUsernameTaken  = Uniqueness("User exists.")
	ErrContactExists  = Uniqueness("contact already in address book")
	ErrContactInvalid = NotFound("contact does not resolve to a user")

	ErrUsernameEmpty    = New(KindValidation, "Username must be one character or longer.")
	ErrPasswordTooShort = New(KindValidation, "Password must be at least 6 characters.")
	ErrPasswordTooLong  = New(KindValidation, "Password must be at most 72 bytes.")
	ErrPasswordMismatch = New(KindValidation, "Passwords must match.")
	ErrEmptyBody        = New(KindValidation, "Message body must not be empty.")
	ErrNoRecipients     = New(KindValidation, "At least one recipient is required.")
	ErrThreadLocked     = New(KindValidation, "Thread is encrypted; supply the passphrase first.")
	ErrThreadUnsaved    = New(KindValidation, "Thread must be saved before messages are sent.")
	ErrMessageUnsent    = New(KindValidation, "Message must be sent before it is added to a thread.")
	ErrUpdateEmpty      = New(KindValidation, "Update must not be empty.")
	ErrUpdateTooLong    = New(KindValidation, "Update must be at most 140 characters.")
	ErrUpdatePosted     = New(KindValidation, "Update was already posted.")
	ErrPassphraseEmpty  = New(KindValidation, "Passphrase must not be empty.")
	ErrThreadSaved      = New(KindValidation, "Encryption can only be enabled before the thread is first saved.")

	ErrDecryptFailed      = New(KindDecryptFailed, "decryption failed")
	ErrInvalidCredentials = New(KindUnauthorized, "incorrect username or password")
	ErrNotUpdateOwner     = New(KindUnauthorized, "only the author can delete an update")
)
