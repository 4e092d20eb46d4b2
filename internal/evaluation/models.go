package evaluation

// Record is one labeled example: source text plus the expected metadata
// document.
type Record struct {
	ID       string
	Text     string
	Expected map[string]any
}

// jsonlRecord is the JSONL representation of a Record.
type jsonlRecord struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Expected map[string]any `json:"expected"`
}

// parquetRecord is the Parquet representation of a Record. Parquet has no
// free-form object column, so the expected document travels JSON-encoded.
type parquetRecord struct {
	ID       string `parquet:"id"`
	Text     string `parquet:"text"`
	Expected string `parquet:"expected"`
}
