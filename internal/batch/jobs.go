package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported job operations.
const (
	OpLookup         = "lookup"
	OpLookupPostcode = "lookup_postcode"
	OpLookupOutcode  = "lookup_outcode"
	OpNear           = "near"
	OpNearPostcode   = "near_postcode"
	OpNearCoordinate = "near_coordinate"
	OpReverseGeocode = "reverse_geocode"
	OpValidate       = "validate"
	OpRandom         = "random"
)

// Job is a single geocoding request declared in a jobs file.
type Job struct {
	ID         string   `json:"id" yaml:"id"`
	Operation  string   `json:"operation" yaml:"operation"`
	Query      string   `json:"query" yaml:"query"`
	Latitude   *float64 `json:"latitude" yaml:"latitude"`
	Longitude  *float64 `json:"longitude" yaml:"longitude"`
	Limit      int      `json:"limit" yaml:"limit"`
	Radius     int      `json:"radius" yaml:"radius"`
	WideSearch bool     `json:"wide_search" yaml:"wide_search"`
}

type jobsFile struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// HasCoordinate reports whether both latitude and longitude are set.
func (j Job) HasCoordinate() bool {
	return j.Latitude != nil && j.Longitude != nil
}

// Key identifies the job inputs for deduplication. Editing any input yields a new key.
func (j Job) Key() string {
	parts := []string{j.ID, j.Operation, strings.ToUpper(j.Query)}
	if j.HasCoordinate() {
		parts = append(parts,
			strconv.FormatFloat(*j.Latitude, 'f', -1, 64),
			strconv.FormatFloat(*j.Longitude, 'f', -1, 64),
		)
	}
	if j.Limit > 0 || j.Radius > 0 || j.WideSearch {
		parts = append(parts, strconv.Itoa(j.Limit), strconv.Itoa(j.Radius), strconv.FormatBool(j.WideSearch))
	}
	return strings.Join(parts, "|")
}

// Deduplicated reports whether results for this job may be skipped once published.
// Random draws differ on every call, so they are always re-run.
func (j Job) Deduplicated() bool {
	return j.Operation != OpRandom
}

// LoadJobs reads and validates a YAML/JSON jobs file.
func LoadJobs(path string) ([]Job, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("jobs file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	return ParseJobs(raw, filepath.Ext(path))
}

// ParseJobs decodes job definitions. ext selects the decoder; an empty ext tries YAML then JSON.
func ParseJobs(data []byte, ext string) ([]Job, error) {
	file, err := decodeJobsFile(data, ext)
	if err != nil {
		return nil, err
	}
	if len(file.Jobs) == 0 {
		return nil, errors.New("jobs file contains no jobs entries")
	}

	jobs := make([]Job, 0, len(file.Jobs))
	seen := make(map[string]struct{}, len(file.Jobs))
	for i := range file.Jobs {
		job := sanitizeJob(file.Jobs[i])
		if err := validateJob(job); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, dup := seen[job.ID]; dup {
			return nil, fmt.Errorf("duplicate job id %q", job.ID)
		}
		seen[job.ID] = struct{}{}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func decodeJobsFile(data []byte, ext string) (jobsFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		ext string
		fn  func([]byte, any) error
	}{
		{ext: ".yaml", fn: yaml.Unmarshal},
		{ext: ".yml", fn: yaml.Unmarshal},
		{ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file jobsFile
		if err := d.fn(data, &file); err != nil {
			lastErr = err
			continue
		}
		return file, nil
	}
	if lastErr != nil {
		return jobsFile{}, fmt.Errorf("decode jobs file: %w", lastErr)
	}
	return jobsFile{}, fmt.Errorf("jobs file format %q not recognized (expected YAML or JSON)", ext)
}

func sanitizeJob(job Job) Job {
	job.ID = strings.TrimSpace(job.ID)
	job.Operation = strings.ToLower(strings.TrimSpace(job.Operation))
	job.Operation = strings.ReplaceAll(job.Operation, "-", "_")
	job.Query = strings.TrimSpace(job.Query)
	return job
}

func validateJob(job Job) error {
	if job.ID == "" {
		return errors.New("id is required")
	}
	if job.Limit < 0 || job.Radius < 0 {
		return fmt.Errorf("job %q: limit and radius must not be negative", job.ID)
	}
	if (job.Latitude == nil) != (job.Longitude == nil) {
		return fmt.Errorf("job %q: latitude and longitude must be set together", job.ID)
	}

	switch job.Operation {
	case OpLookup, OpLookupPostcode, OpLookupOutcode, OpNearPostcode, OpValidate:
		if job.Query == "" {
			return fmt.Errorf("job %q: query is required for %s", job.ID, job.Operation)
		}
	case OpNearCoordinate, OpReverseGeocode:
		if !job.HasCoordinate() {
			return fmt.Errorf("job %q: latitude and longitude are required for %s", job.ID, job.Operation)
		}
	case OpNear:
		if job.Query == "" && !job.HasCoordinate() {
			return fmt.Errorf("job %q: near needs a query or a coordinate", job.ID)
		}
		if job.Query != "" && job.HasCoordinate() {
			return fmt.Errorf("job %q: near takes a query or a coordinate, not both", job.ID)
		}
	case OpRandom:
	case "":
		return fmt.Errorf("job %q: operation is required", job.ID)
	default:
		return fmt.Errorf("job %q: unsupported operation %q", job.ID, job.Operation)
	}
	return nil
}
