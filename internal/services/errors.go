package services

import (
	"errors"
	"fmt"
	"net/http"

	apierrors "pangandash/internal/errors"
	"pangandash/internal/session"
	"pangandash/pkg/contracts/domain"
)

// columnNotFound is returned for an options request on a column the table lacks.
func columnNotFound(kind domain.TableKind, column string) error {
	return apierrors.NewWithDetails(http.StatusNotFound, "COLUMN_NOT_FOUND",
		fmt.Sprintf("column %q is not present in the %s table", column, kind),
		map[string]string{"kind": string(kind), "column": column})
}

// parseKind maps an unknown kind slug to a 404 problem.
func parseKind(s string) (domain.TableKind, error) {
	kind, err := domain.ParseTableKind(s)
	if err != nil {
		return "", apierrors.UnknownTableKind(s)
	}
	return kind, nil
}

// sessionError translates store errors into API errors.
func sessionError(id string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return apierrors.NewWithDetails(
			apierrors.ErrSessionNotFound.StatusCode,
			apierrors.ErrSessionNotFound.ErrorCode,
			apierrors.ErrSessionNotFound.Message,
			map[string]string{"session_id": id},
		)
	}
	return apierrors.NewStorageError(fmt.Sprintf("session %s", id), err)
}
