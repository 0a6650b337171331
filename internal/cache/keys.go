package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func ItemStatusKey(itemID uuid.UUID) string {
	return fmt.Sprintf("item:status:%s", itemID)
}

func BatchAdmissionKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("batch:admission:%s", ownerID)
}

func DuplicateCheckKey(ownerID uuid.UUID, hash string) string {
	return fmt.Sprintf("dup:%s:%s", ownerID, hash)
}
