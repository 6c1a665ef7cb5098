package benchmarks

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mkoskinen/benchcom/domain/stats"
	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/jsondoc"
)

const maxShortField = 255

// validateSubmission enforces required fields and size caps before anything
// is written.
func validateSubmission(req *SubmitRequest, limits config.LimitsConfig) error {
	if strings.TrimSpace(req.Hostname) == "" {
		return apperror.NewValidation("hostname", "hostname is required")
	}
	if strings.TrimSpace(req.Architecture) == "" {
		return apperror.NewValidation("architecture", "architecture is required")
	}

	short := []struct {
		field string
		value *string
	}{
		{"hostname", &req.Hostname},
		{"architecture", &req.Architecture},
		{"cpu_model", req.CPUModel},
		{"os_info", req.OSInfo},
		{"kernel_version", req.KernelVersion},
		{"benchmark_version", &req.BenchmarkVersion},
		{"run_type_version", req.RunTypeVersion},
		{"benchmark_started_at", req.BenchmarkStartedAt},
		{"benchmark_completed_at", req.BenchmarkCompletedAt},
	}
	for _, f := range short {
		if err := maxChars(f.field, f.value, maxShortField); err != nil {
			return err
		}
		if err := noNUL(f.field, f.value); err != nil {
			return err
		}
	}
	if err := maxChars("notes", req.Notes, limits.MaxNotesLength); err != nil {
		return err
	}
	if err := noNUL("notes", req.Notes); err != nil {
		return err
	}
	if err := noNUL("console_output", req.ConsoleOutput); err != nil {
		return err
	}
	if req.ConsoleOutput != nil && len(*req.ConsoleOutput) > limits.MaxConsoleOutputBytes {
		return apperror.NewValidation("console_output",
			fmt.Sprintf("console_output exceeds %d bytes", limits.MaxConsoleOutputBytes))
	}
	if req.CPUCores != nil && *req.CPUCores < 0 {
		return apperror.NewValidation("cpu_cores", "cpu_cores must not be negative")
	}
	if req.TotalMemoryMB != nil && *req.TotalMemoryMB < 0 {
		return apperror.NewValidation("total_memory_mb", "total_memory_mb must not be negative")
	}

	if len(req.Labels) > limits.MaxLabels {
		return apperror.NewValidation("labels", fmt.Sprintf("at most %d labels are allowed", limits.MaxLabels))
	}
	for _, l := range req.Labels {
		if l == "" || utf8.RuneCountInString(l) > limits.MaxLabelLength {
			return apperror.NewValidation("labels",
				fmt.Sprintf("labels must be between 1 and %d characters", limits.MaxLabelLength))
		}
		if err := noNUL("labels", &l); err != nil {
			return err
		}
	}

	if err := checkDocument("tags", req.Tags, limits.MaxJSONDocumentBytes); err != nil {
		return err
	}
	if err := checkDocument("dmi_info", req.DMIInfo, limits.MaxJSONDocumentBytes); err != nil {
		return err
	}
	if stats.SystemTypeLength(req.DMIInfo) > stats.MaxSystemTypeLength {
		return apperror.NewValidation("dmi_info",
			fmt.Sprintf("dmi_info manufacturer and product exceed %d characters combined", stats.MaxSystemTypeLength))
	}

	if len(req.Results) > limits.MaxResultsPerSubmission {
		return apperror.NewValidation("results",
			fmt.Sprintf("at most %d results are allowed per submission", limits.MaxResultsPerSubmission))
	}
	for i := range req.Results {
		if err := validateResult(i, &req.Results[i], limits); err != nil {
			return err
		}
	}
	return nil
}

func validateResult(i int, r *ResultInput, limits config.LimitsConfig) error {
	field := func(name string) string { return fmt.Sprintf("results[%d].%s", i, name) }

	if strings.TrimSpace(r.TestName) == "" {
		return apperror.NewValidation(field("test_name"), "test_name is required")
	}
	if strings.TrimSpace(r.TestCategory) == "" {
		return apperror.NewValidation(field("test_category"), "test_category is required")
	}
	if err := maxChars(field("test_name"), &r.TestName, maxShortField); err != nil {
		return err
	}
	if err := maxChars(field("test_category"), &r.TestCategory, maxShortField); err != nil {
		return err
	}
	if err := maxChars(field("unit"), r.Unit, maxShortField); err != nil {
		return err
	}
	for name, v := range map[string]*string{
		"test_name":     &r.TestName,
		"test_category": &r.TestCategory,
		"unit":          r.Unit,
		"raw_output":    r.RawOutput,
	} {
		if err := noNUL(field(name), v); err != nil {
			return err
		}
	}
	if r.RawOutput != nil && len(*r.RawOutput) > limits.MaxRawOutputBytes {
		return apperror.NewValidation(field("raw_output"),
			fmt.Sprintf("raw_output exceeds %d bytes", limits.MaxRawOutputBytes))
	}
	return checkDocument(field("metrics"), r.Metrics, limits.MaxJSONDocumentBytes)
}

func maxChars(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if utf8.RuneCountInString(*v) > limit {
		return apperror.NewValidation(field, fmt.Sprintf("%s exceeds %d characters", field, limit))
	}
	return nil
}

// noNUL rejects U+0000, which PostgreSQL text columns cannot hold.
func noNUL(field string, v *string) error {
	if v != nil && strings.ContainsRune(*v, 0) {
		return apperror.NewValidation(field, field+" must not contain NUL characters")
	}
	return nil
}

func checkDocument(field string, doc map[string]any, limit int) error {
	if len(doc) == 0 {
		return nil
	}
	if jsondoc.HasNUL(doc) {
		return apperror.NewValidation(field, field+" must not contain NUL characters")
	}
	n, err := jsondoc.Size(doc)
	if err != nil {
		return apperror.NewValidation(field, field+" is not a valid JSON object")
	}
	if n > limit {
		return apperror.NewValidation(field, fmt.Sprintf("%s exceeds %d bytes", field, limit))
	}
	return nil
}
