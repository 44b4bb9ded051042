package api

import (
	"context"
	"fmt"
	"net/url"
)

// Port is one serial port the backend recognises as a taximeter link.
type Port struct {
	Device      string `json:"device"`
	Description string `json:"description"`
	HWID        string `json:"hwid,omitempty"`
}

// Label renders the port the way the selector lists it.
func (p Port) Label() string {
	desc := p.Description
	if desc == "" {
		desc = "N/A"
	}
	return fmt.Sprintf("%s (%s)", p.Device, desc)
}

type portRequest struct {
	Port string `json:"port"`
}

// Ports lists the serial ports with a known taximeter adapter attached.
func (c *Client) Ports(ctx context.Context) ([]Port, error) {
	var resp struct {
		Envelope
		Ports []Port `json:"ports"`
	}
	code, err := c.GetJSON(ctx, "/get_ports", nil, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.check("get_ports", code); err != nil {
		return nil, err
	}
	return resp.Ports, nil
}

// SerialNumber restarts the device on port and reads back its serial number.
func (c *Client) SerialNumber(ctx context.Context, port string) (string, error) {
	var resp struct {
		Envelope
		SerialNumber string `json:"serial_number"`
	}
	code, err := c.PostJSON(ctx, "/get_serial_number", portRequest{Port: port}, &resp)
	if err != nil {
		return "", err
	}
	if err := resp.check("get_serial_number", code); err != nil {
		return "", err
	}
	return resp.SerialNumber, nil
}

// PortStatus reports whether port is still present on the backend host.
func (c *Client) PortStatus(ctx context.Context, port string) (bool, error) {
	var resp struct {
		Envelope
		Connected bool `json:"connected"`
	}
	code, err := c.PostJSON(ctx, "/check_port_status", portRequest{Port: port}, &resp)
	if err != nil {
		return false, err
	}
	if err := resp.check("check_port_status", code); err != nil {
		return false, err
	}
	return resp.Connected, nil
}

// ResetDevice flashes the serial-reader firmware back onto the device.
func (c *Client) ResetDevice(ctx context.Context, port string) (string, error) {
	var resp Envelope
	code, err := c.PostForm(ctx, "/resetcibtron", url.Values{"port": {port}}, &resp)
	if err != nil {
		return "", err
	}
	if err := resp.check("resetcibtron", code); err != nil {
		return "", err
	}
	return resp.Message, nil
}
