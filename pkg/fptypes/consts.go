package fptypes

import "strconv"

// ModuleID is the well-known identifier under which fingerprint drivers
// register themselves.
const ModuleID = "fingerprint"

// APIVersion identifies a revision of the device contract. Drivers report
// the highest revision they implement.
type APIVersion uint16

const (
	APIVersion1_0 APIVersion = 0x0100
	APIVersion2_0 APIVersion = 0x0200
	APIVersion2_1 APIVersion = 0x0201
	APIVersion3_0 APIVersion = 0x0300
)

func (v APIVersion) String() string {
	return strconv.Itoa(int(v>>8)) + "." + strconv.Itoa(int(v&0xff))
}

// MessageType discriminates asynchronous notifications delivered through
// the registered notify callback.
type MessageType int32

const (
	MessageTypeError                     MessageType = -1
	MessageTypeAcquired                  MessageType = 1
	MessageTypeTemplateEnrolling         MessageType = 3
	MessageTypeTemplateRemoved           MessageType = 4
	MessageTypeAuthenticated             MessageType = 5
	MessageTypeTemplateEnumerating       MessageType = 6
	MessageTypeChallengeGenerated        MessageType = 7
	MessageTypeChallengeRevoked          MessageType = 8
	MessageTypeAuthenticatorIDRetrieved  MessageType = 9
	MessageTypeAuthenticatorIDInvalidate MessageType = 10
	MessageTypeResetLockout              MessageType = 11
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeError:
		return "Error"
	case MessageTypeAcquired:
		return "Acquired"
	case MessageTypeTemplateEnrolling:
		return "TemplateEnrolling"
	case MessageTypeTemplateRemoved:
		return "TemplateRemoved"
	case MessageTypeAuthenticated:
		return "Authenticated"
	case MessageTypeTemplateEnumerating:
		return "TemplateEnumerating"
	case MessageTypeChallengeGenerated:
		return "ChallengeGenerated"
	case MessageTypeChallengeRevoked:
		return "ChallengeRevoked"
	case MessageTypeAuthenticatorIDRetrieved:
		return "AuthenticatorIDRetrieved"
	case MessageTypeAuthenticatorIDInvalidate:
		return "AuthenticatorIDInvalidated"
	case MessageTypeResetLockout:
		return "ResetLockout"
	default:
		return "MessageType(" + strconv.FormatInt(int64(t), 10) + ")"
	}
}

// ErrorCode tells the framework to terminate the current operation and, in
// most cases, surface the situation to the user. An unrecoverable condition
// discovered mid-operation must be followed by ErrorCanceled so the
// framework's view of the device returns to idle.
type ErrorCode int32

const (
	// ErrorHwUnavailable reports a hardware fault that can't be resolved.
	ErrorHwUnavailable ErrorCode = 1
	// ErrorUnableToProcess reports bad data; the operation can't continue.
	ErrorUnableToProcess ErrorCode = 2
	// ErrorTimeout reports the operation timed out waiting for user input.
	ErrorTimeout ErrorCode = 3
	// ErrorNoSpace reports there is no space left to store a template.
	ErrorNoSpace ErrorCode = 4
	// ErrorCanceled reports the current operation can't proceed.
	ErrorCanceled ErrorCode = 5
	// ErrorUnableToRemove reports a template that can't be removed.
	ErrorUnableToRemove ErrorCode = 6
	// ErrorLockout reports the device is locked out due to too many attempts.
	ErrorLockout ErrorCode = 7

	// ErrorVendorBase is the first vendor-specific error code. Everything
	// below it is reserved for the universal taxonomy.
	ErrorVendorBase ErrorCode = 1000
)

// IsVendor reports whether the code lives in the vendor-specific range.
func (c ErrorCode) IsVendor() bool {
	return c >= ErrorVendorBase
}

func (c ErrorCode) String() string {
	switch c {
	case ErrorHwUnavailable:
		return "HwUnavailable"
	case ErrorUnableToProcess:
		return "UnableToProcess"
	case ErrorTimeout:
		return "Timeout"
	case ErrorNoSpace:
		return "NoSpace"
	case ErrorCanceled:
		return "Canceled"
	case ErrorUnableToRemove:
		return "UnableToRemove"
	case ErrorLockout:
		return "Lockout"
	}
	if c.IsVendor() {
		return "Vendor(" + strconv.FormatInt(int64(c-ErrorVendorBase), 10) + ")"
	}
	return "ErrorCode(" + strconv.FormatInt(int64(c), 10) + ")"
}

// AcquiredInfo is feedback for the operation in flight. Anything but
// AcquiredGood is shown to the user as guidance on how to get a better
// capture; if the condition also kills the operation, an ErrorCanceled
// follows it.
type AcquiredInfo int32

const (
	AcquiredGood AcquiredInfo = 0
	// AcquiredPartial means the sensor needs more data, i.e. a longer swipe.
	AcquiredPartial AcquiredInfo = 1
	// AcquiredInsufficient means the image doesn't carry enough detail.
	AcquiredInsufficient AcquiredInfo = 2
	// AcquiredImagerDirty means the sensor needs to be cleaned.
	AcquiredImagerDirty AcquiredInfo = 3
	// AcquiredTooSlow means not enough data was collected in time.
	AcquiredTooSlow AcquiredInfo = 4
	// AcquiredTooFast tells the user to slow down.
	AcquiredTooFast AcquiredInfo = 5
	// AcquiredDetected fires when the finger is first seen, to optimize
	// wakeup. It is followed by one of the codes above.
	AcquiredDetected AcquiredInfo = 6

	// AcquiredVendorBase is the first vendor-specific acquisition code.
	AcquiredVendorBase AcquiredInfo = 1000
)

// IsVendor reports whether the code lives in the vendor-specific range.
func (i AcquiredInfo) IsVendor() bool {
	return i >= AcquiredVendorBase
}

func (i AcquiredInfo) String() string {
	switch i {
	case AcquiredGood:
		return "Good"
	case AcquiredPartial:
		return "Partial"
	case AcquiredInsufficient:
		return "Insufficient"
	case AcquiredImagerDirty:
		return "ImagerDirty"
	case AcquiredTooSlow:
		return "TooSlow"
	case AcquiredTooFast:
		return "TooFast"
	case AcquiredDetected:
		return "Detected"
	}
	if i.IsVendor() {
		return "Vendor(" + strconv.FormatInt(int64(i-AcquiredVendorBase), 10) + ")"
	}
	return "AcquiredInfo(" + strconv.FormatInt(int64(i), 10) + ")"
}
