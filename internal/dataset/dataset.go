package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Sample is one labeled row of a training corpus. Label is 1 for
// cyberbullying, 0 otherwise.
type Sample struct {
	Text  string
	Label int
}

// ReadSamples loads a "text,label" CSV corpus.
func ReadSamples(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	samples := make([]Sample, 0, len(records))
	for i, rec := range records {
		if i == 0 && rec[0] == "text" {
			continue // header
		}
		label, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("bad label on row %d of %s: %w", i+1, path, err)
		}
		samples = append(samples, Sample{Text: rec[0], Label: label})
	}
	return samples, nil
}

// WriteSamples writes a "text,label" CSV corpus.
func WriteSamples(path string, samples []Sample) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"text", "label"}); err != nil {
		return err
	}
	for _, s := range samples {
		if err := writer.Write([]string{s.Text, strconv.Itoa(s.Label)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
