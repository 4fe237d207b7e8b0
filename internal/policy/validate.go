package policy

import "strings"

// ValidateOffsite checks that an offsite policy is usable before any copy
// request is issued. A validation failure skips the offsite step only;
// local snapshot and retention work proceed unaffected.
func ValidateOffsite(p *OffsitePolicy) error {
	if p == nil || !p.Enabled {
		return &PolicyValidationError{Field: "enabled", Reason: "offsite replication is not enabled"}
	}
	if p.Region == "" {
		return &PolicyValidationError{Field: "region", Reason: "destination region is required"}
	}
	if p.HistorySize < 0 {
		return &PolicyValidationError{Field: "historysize", Reason: "must not be negative"}
	}
	if p.Encrypt {
		if p.KMSKeyID == "" {
			return &PolicyValidationError{Field: "kmskeyid", Reason: "required when encrypt is set"}
		}
		if isKeyAlias(p.KMSKeyID) {
			return &PolicyValidationError{Field: "kmskeyid", Reason: "key aliases are not accepted; use the raw key id"}
		}
	}
	return nil
}

// isKeyAlias detects alias-form key identifiers, both bare ("alias/backup")
// and ARN form ("arn:aws:kms:...:alias/backup"). Aliases are rejected
// because they can be repointed after the policy was written, silently
// changing which key encrypts the copies.
func isKeyAlias(keyID string) bool {
	return strings.HasPrefix(keyID, "alias/") || strings.Contains(keyID, ":alias/")
}
