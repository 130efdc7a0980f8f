package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
)

// kinder is satisfied by domain errors
// that carry a classification kind.
type kinder interface {
	Kind() string
}

var kindToStatus = map[string]int{
	string(domain.KindInvalidOrder):               http.StatusBadRequest,
	string(domain.KindCustomerInvalid):            http.StatusUnprocessableEntity,
	string(domain.KindExternalServiceUnavailable): http.StatusServiceUnavailable,
	string(domain.KindCanceled):                   http.StatusRequestTimeout,
	string(domain.KindNotFound):                   http.StatusNotFound,
	string(domain.KindConflict):                   http.StatusConflict,
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(domain.KindCanceled)
	}
	return string(domain.KindInternal)
}

// HTTPStatus maps a registration error to its status code. Persistence,
// fatal and unclassified errors are all 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[errorKind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// publicMessage hides infrastructure detail behind 5xx responses.
func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return "internal error"
	}
	return err.Error()
}
