package yahoo

// Wire types for the Yahoo Finance v8 spark and chart endpoints. Close and
// open series use pointers because the API encodes missing days as nulls;
// a nil entry must never be read as a zero price.

type sparkResponse struct {
	Spark struct {
		Result []struct {
			Symbol   string        `json:"symbol"`
			Response []chartResult `json:"response"`
		} `json:"result"`
	} `json:"spark"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open  []*float64 `json:"open"`
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (r chartResult) closes() []*float64 {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	return r.Indicators.Quote[0].Close
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
