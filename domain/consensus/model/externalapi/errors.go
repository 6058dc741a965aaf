package externalapi

import "github.com/pkg/errors"

func errWrongHashSize(size int) error {
	return errors.Errorf("invalid hash size. Want: %d, got: %d", DomainHashSize, size)
}
