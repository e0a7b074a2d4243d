package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samvad-hq/postcodes-geocoder/internal/domain"
	"github.com/samvad-hq/postcodes-geocoder/pkg/postcodes"
)

// Execute runs a single job against the geocoder. Jobs that were not loaded
// through ParseJobs are validated here and fail with postcodes.ErrInvalidArguments.
func Execute(ctx context.Context, g Geocoder, job Job) (domain.Result, error) {
	res := domain.Result{
		JobID:     job.ID,
		Operation: job.Operation,
		Query:     describeQuery(job),
	}
	if err := validateJob(job); err != nil {
		return res, fmt.Errorf("%w: %w", postcodes.ErrInvalidArguments, err)
	}
	if g == nil {
		return res, fmt.Errorf("job %q: no geocoder configured", job.ID)
	}

	var (
		single json.RawMessage
		list   []json.RawMessage
		isList bool
		err    error
	)

	switch job.Operation {
	case OpLookup:
		single, err = g.Lookup(ctx, job.Query)
	case OpLookupPostcode:
		single, err = g.LookupPostcode(ctx, job.Query)
	case OpLookupOutcode:
		single, err = g.LookupOutcode(ctx, job.Query)
	case OpNearPostcode:
		isList = true
		list, err = g.NearPostcode(ctx, job.Query)
	case OpNear:
		isList = true
		if job.Query != "" {
			list, err = g.NearPostcode(ctx, job.Query)
		} else {
			list, err = g.NearCoordinate(ctx, *job.Latitude, *job.Longitude, nearOptions(job))
		}
	case OpNearCoordinate:
		isList = true
		list, err = g.NearCoordinate(ctx, *job.Latitude, *job.Longitude, nearOptions(job))
	case OpReverseGeocode:
		single, err = g.ReverseGeocode(ctx, *job.Latitude, *job.Longitude)
	case OpValidate:
		var ok bool
		ok, err = g.Validate(ctx, job.Query)
		if err == nil {
			res.Found = ok
			res.Payload = json.RawMessage(fmt.Sprintf("%t", ok))
			return res, nil
		}
	case OpRandom:
		single, err = g.Random(ctx)
	default:
		return res, fmt.Errorf("job %q: unsupported operation %q", job.ID, job.Operation)
	}
	if err != nil {
		return res, fmt.Errorf("job %q %s: %w", job.ID, job.Operation, err)
	}

	if isList {
		payload, err := json.Marshal(list)
		if err != nil {
			return res, fmt.Errorf("job %q: encode results: %w", job.ID, err)
		}
		res.Payload = payload
		res.Found = len(list) > 0
		return res, nil
	}

	res.Payload = single
	res.Found = single != nil
	return res, nil
}

func nearOptions(job Job) *postcodes.NearOptions {
	if job.Limit == 0 && job.Radius == 0 && !job.WideSearch {
		return nil
	}
	return &postcodes.NearOptions{
		Limit:      job.Limit,
		Radius:     job.Radius,
		WideSearch: job.WideSearch,
	}
}

func describeQuery(job Job) string {
	if job.Query != "" || !job.HasCoordinate() {
		return job.Query
	}
	return fmt.Sprintf("%g,%g", *job.Latitude, *job.Longitude)
}
