package sheets

// ValueRange mirrors the values API response for a single range read.
// Cells arrive as loosely-typed JSON values; Client.GetRange converts them
// to strings so parsing happens exactly once, at the sync boundary.
type ValueRange struct {
	Range          string  `json:"range"`
	MajorDimension string  `json:"majorDimension"`
	Values         [][]any `json:"values"`
}

// apiError is the error envelope returned by the values API.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
