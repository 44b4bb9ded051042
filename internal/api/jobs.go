package api

import (
	"context"
	"net/url"
)

// SubmitResult is the backend's acknowledgement of a job submission.
type SubmitResult struct {
	Envelope
	SerialProgrammed string `json:"serial_programmed,omitempty"`
	UUID             string `json:"uuid,omitempty"`
}

// ExecuteAndProgram submits the parameters job. form must carry every
// field of the parameter form plus "port".
func (c *Client) ExecuteAndProgram(ctx context.Context, form url.Values) (*SubmitResult, error) {
	return c.submit(ctx, "/execute_and_program", form)
}

// ExecuteSetSerialJob submits the set-serial job.
func (c *Client) ExecuteSetSerialJob(ctx context.Context, form url.Values) (*SubmitResult, error) {
	return c.submit(ctx, "/execute_set_serial_job", form)
}

func (c *Client) submit(ctx context.Context, endpoint string, form url.Values) (*SubmitResult, error) {
	var resp SubmitResult
	code, err := c.PostForm(ctx, endpoint, form, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.check(endpoint[1:], code); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus returns the parameters job status the backend last published.
// The reply's status field is the job status itself, not an envelope.
func (c *Client) JobStatus(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if _, err := c.GetJSON(ctx, "/get_job_status", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
