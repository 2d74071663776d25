package shared

import apperrors "memory-engine/pkg/errors"

// Domain-level sentinel errors, expressed through the process-wide kind
// taxonomy (pkg/errors) rather than a bespoke domain error system.
var (
	ErrInvalidMemoryID = apperrors.Validation("invalid memory ID: must be a valid UUID")
	ErrEmptyUserID      = apperrors.Validation("user ID cannot be empty")
	ErrUserIDTooLong    = apperrors.Validation("user ID exceeds maximum length")
	ErrEmptyContent     = apperrors.Validation("content cannot be empty")
	ErrContentTooLong   = apperrors.Validation("content exceeds maximum length")

	ErrMemoryNotFound = apperrors.NotFound("memory not found")
	ErrEdgeNotFound   = apperrors.NotFound("edge not found")

	ErrSelfEdge           = apperrors.Validation("an edge cannot connect a memory to itself")
	ErrCrossUserEdge      = apperrors.Validation("an edge cannot connect memories owned by different users")
	ErrEdgeAlreadyExists  = apperrors.Conflict("an edge of this type already exists between these memories")
	ErrInvalidEdgeType    = apperrors.Validation("unrecognised edge type")
	ErrInvalidMemoryType  = apperrors.Validation("unrecognised memory type")
	ErrInvalidStatus      = apperrors.Validation("unrecognised memory status")
	ErrCannotUpdateDeleted = apperrors.Validation("cannot update a deleted memory")

	ErrInvalidEntityName = apperrors.Validation("entity name must be at least 2 characters")
	ErrInvalidHubType    = apperrors.Validation("unrecognised entity hub type")
	ErrEntityNotFound    = apperrors.NotFound("entity hub not found")
)

// IsValidationError reports whether err is a validation-kind error.
func IsValidationError(err error) bool { return apperrors.IsValidation(err) }

// IsConflictError reports whether err is a conflict-kind error.
func IsConflictError(err error) bool { return apperrors.IsConflict(err) }

// IsNotFoundError reports whether err is a not-found-kind error.
func IsNotFoundError(err error) bool { return apperrors.IsNotFound(err) }
