package api

import (
	"errors"
	"net/http"

	"semlayer/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var (
		notFound     *domain.NotFoundError
		validation   *domain.ValidationError
		conflict     *domain.ConflictError
		syntax       *domain.SyntaxError
		invalidModel *domain.InvalidModelDefinitionError
		unknownRel   *domain.UnknownRelationshipError
		unknownModel *domain.UnknownModelError
		cycle        *domain.CyclicModelDependencyError
		translation  *domain.TranslationError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &validation),
		errors.As(err, &syntax),
		errors.As(err, &invalidModel),
		errors.As(err, &unknownRel),
		errors.As(err, &unknownModel),
		errors.As(err, &cycle):
		return http.StatusBadRequest
	case errors.As(err, &translation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
