// Package dto holds the response and request shapes of the HTTP API. Every
// response is assembled by an explicit To* mapping function from models.
package dto

// Response is the envelope of every successful non-list response.
type Response struct {
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Results interface{} `json:"results"`
}

// Page is the envelope of paginated lists. Next and Previous are the page
// numbers to request, nil at either end.
type Page struct {
	Count    int64       `json:"count"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Next     *int        `json:"next"`
	Previous *int        `json:"previous"`
	Results  interface{} `json:"results"`
}

// NewPage builds a page envelope for page number (1-based) of size over
// total rows.
func NewPage(results interface{}, total int64, number, size int) Page {
	p := Page{Count: total, Page: number, PageSize: size, Results: results}
	if int64(number*size) < total {
		next := number + 1
		p.Next = &next
	}
	if number > 1 {
		prev := number - 1
		p.Previous = &prev
	}
	return p
}

// ClickResponse answers the click counters.
type ClickResponse struct {
	Message string `json:"message"`
	Clicks  int64  `json:"clicks"`
}
