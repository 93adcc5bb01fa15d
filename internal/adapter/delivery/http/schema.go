package http

import "github.com/vadimbarashkov/shorturl/internal/entity"

// urlRequest is accepted both as JSON and as a urlencoded form.
type urlRequest struct {
	URL string `json:"url" form:"url"`
}

type urlResponse struct {
	OriginalURL string `json:"original_url"`
	ShortCode   int64  `json:"short_code"`
}

func toURLResponse(url *entity.URL) urlResponse {
	return urlResponse{
		OriginalURL: url.OriginalURL,
		ShortCode:   url.ShortCode,
	}
}

type greetingResponse struct {
	Greeting string `json:"greeting"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse   = errorResponse{Error: "empty request body"}
	invalidRequestBodyResponse = errorResponse{Error: "invalid request body"}
	invalidURLResponse         = errorResponse{Error: "invalid url"}
	invalidShortIDResponse     = errorResponse{Error: "invalid short ID"}
	urlNotFoundResponse        = errorResponse{Error: "No URL found for the given short ID"}
	serverErrorResponse        = errorResponse{Error: "Internal server error"}
)
