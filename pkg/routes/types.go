package routes

// Leg is the resolved travel from one origin to the destination.
type Leg struct {
	Origin          string
	DistanceMiles   float64
	DurationSeconds int
	OK              bool
}

// distanceMatrixResponse mirrors the distance-matrix API wire format.
// Each row corresponds to one origin, in request order.
type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
	ErrorMessage string `json:"error_message"`
}
