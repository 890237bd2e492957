// openapi.go — проверка запросов API по OpenAPI контракту (kin-openapi).
// Проверяются путь, метод и параметры; multipart-тело разбирает обработчик.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/coursehub-uploads/internal/api/errors"
)

// OpenAPIValidator возвращает middleware проверки запросов по контракту doc.
func OpenAPIValidator(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, err
	}
	opts := &openapi3filter.Options{
		ExcludeRequestBody:    true,
		MultiError:            false,
		AuthenticationFunc:    openapi3filter.NoopAuthenticationFunc,
		IncludeResponseStatus: true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				switch {
				case errors.Is(err, routers.ErrMethodNotAllowed):
					apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeValidationError, "Метод не поддерживается")
				default:
					apierrors.NotFound(w, "Маршрут не найден")
				}
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				logger.Debug("Запрос не соответствует контракту",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

// validationMessage формирует краткое сообщение об ошибке проверки.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil {
		return "Некорректный параметр " + reqErr.Parameter.Name
	}
	return "Запрос не соответствует контракту API"
}
