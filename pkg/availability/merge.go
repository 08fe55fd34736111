package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
)

const clockLayout = "15:04"

// Merge applies patch to current. LocationURL, Latitude and Longitude are write-once: a value that is
// already set is kept and the patched value is dropped. Opening hours only apply to stores.
func Merge(current Record, patch Patch) Record {
	merged := current
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	if patch.Region != nil {
		merged.Region = strings.TrimSpace(*patch.Region)
	}
	if patch.Note != nil {
		merged.Note = strings.TrimSpace(*patch.Note)
	}
	if merged.LocationURL == nil && patch.LocationURL != nil {
		if trimmed := strings.TrimSpace(*patch.LocationURL); trimmed != "" {
			merged.LocationURL = &trimmed
		}
	}
	if merged.Latitude == nil && patch.Latitude != nil {
		latitude := *patch.Latitude
		merged.Latitude = &latitude
	}
	if merged.Longitude == nil && patch.Longitude != nil {
		longitude := *patch.Longitude
		merged.Longitude = &longitude
	}
	if current.Role == identity.RoleStore {
		if patch.OpenDays != nil {
			merged.OpenDays = strings.TrimSpace(*patch.OpenDays)
		}
		if patch.OpenTime != nil {
			merged.OpenTime = strings.TrimSpace(*patch.OpenTime)
		}
		if patch.CloseTime != nil {
			merged.CloseTime = strings.TrimSpace(*patch.CloseTime)
		}
	}
	return merged
}

// Validate rejects values no record may hold.
func (patch Patch) Validate() error {
	if patch.Status != nil {
		if _, err := ParseStatus(patch.Status.String()); err != nil {
			return err
		}
	}
	if patch.Latitude != nil && (*patch.Latitude < -90 || *patch.Latitude > 90) {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPatch, *patch.Latitude)
	}
	if patch.Longitude != nil && (*patch.Longitude < -180 || *patch.Longitude > 180) {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPatch, *patch.Longitude)
	}
	for name, value := range map[string]*string{"open_time": patch.OpenTime, "close_time": patch.CloseTime} {
		if value == nil || strings.TrimSpace(*value) == "" {
			continue
		}
		if _, err := time.Parse(clockLayout, strings.TrimSpace(*value)); err != nil {
			return fmt.Errorf("%w: %s must look like HH:MM", ErrInvalidPatch, name)
		}
	}
	return nil
}
