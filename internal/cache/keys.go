package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	AvailableSlotsKeyPrefix = "slots:available:%s"
	StageConfigKeyPrefix    = "review:stages:%s:%s"
)

const (
	AvailableSlotsTTL = time.Minute
	StageConfigTTL    = 10 * time.Minute
)

// AvailableSlotsKey caches an organization's bookable slot listing.
func AvailableSlotsKey(orgID uuid.UUID) string {
	return fmt.Sprintf(AvailableSlotsKeyPrefix, orgID)
}

// StageConfigKey caches the enabled review stages for an organization type
// and resource type.
func StageConfigKey(orgType, resourceType string) string {
	return fmt.Sprintf(StageConfigKeyPrefix, orgType, resourceType)
}
