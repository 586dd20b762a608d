package model

type URLInfoResponse struct {
	Type    string `json:"type"`
	RootURL string `json:"rootUrl"`
}

type URLInfoErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}
