package neonfs

// Input validation helpers shared across the provider and key manager.

// validateSecureBuffer checks that a buffer is live and, when exact > 0,
// exactly that many bytes long.
func validateSecureBuffer(buf *SecureBuffer, name string, exact int) error {
	if buf == nil {
		return errInvalidArgument("%s cannot be nil", name)
	}
	if buf.IsDestroyed() {
		return errInvalidArgument("%s has been destroyed", name)
	}
	if exact > 0 && buf.Len() != exact {
		return errInvalidArgument("%s must be %d bytes, got %d", name, exact, buf.Len())
	}
	return nil
}

// validateNonEmpty checks that a buffer is live and holds at least one
// byte.
func validateNonEmpty(buf *SecureBuffer, name string) error {
	if err := validateSecureBuffer(buf, name, 0); err != nil {
		return err
	}
	if buf.Len() == 0 {
		return errInvalidArgument("%s cannot be empty", name)
	}
	return nil
}

// validateSizeRange checks that size lies in [min, max].
func validateSizeRange(size, min, max int, name string) error {
	if size < min || size > max {
		return errInvalidArgument("%s must be between %d and %d bytes, got %d",
			name, min, max, size)
	}
	return nil
}
