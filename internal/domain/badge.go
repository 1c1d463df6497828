package domain

// BadgeClass is the presentation category a status maps to. The dashboard
// renders one badge per record status; the mapping is deliberately split
// per enum so document and shipment statuses can never collide.
type BadgeClass string

const (
	BadgeNeutral BadgeClass = "neutral"
	BadgeInfo    BadgeClass = "info"
	BadgeWarning BadgeClass = "warning"
	BadgeSuccess BadgeClass = "success"
	BadgeDanger  BadgeClass = "danger"
)

// Badge returns the badge class for a shipment status.
func (s ShipmentStatus) Badge() BadgeClass {
	switch s {
	case ShipmentProcessing:
		return BadgeNeutral
	case ShipmentInTransit:
		return BadgeInfo
	case ShipmentCustoms:
		return BadgeWarning
	case ShipmentDelivered:
		return BadgeSuccess
	default:
		return BadgeNeutral
	}
}

// Badge returns the badge class for a document status.
func (s DocumentStatus) Badge() BadgeClass {
	switch s {
	case DocumentPending:
		return BadgeWarning
	case DocumentApproved:
		return BadgeSuccess
	case DocumentNeedsRevision:
		return BadgeDanger
	default:
		return BadgeNeutral
	}
}

// ValidShipmentStatus reports whether s is a member of the canonical enum.
func ValidShipmentStatus(s ShipmentStatus) bool {
	switch s {
	case ShipmentProcessing, ShipmentInTransit, ShipmentCustoms, ShipmentDelivered:
		return true
	}
	return false
}

// ValidDocumentStatus reports whether s is a member of the canonical enum.
func ValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentPending, DocumentApproved, DocumentNeedsRevision:
		return true
	}
	return false
}
