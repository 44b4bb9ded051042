package fakebackend

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/push"
)

var digits = regexp.MustCompile(`^[0-9]+$`)

type envelope map[string]any

func fail(c echo.Context, code int, message string) error {
	return c.JSON(code, envelope{"status": "error", "message": message})
}

type portBody struct {
	Port string `json:"port"`
}

func (s *Server) authorized(c echo.Context) bool {
	if s.opts.Token == "" {
		return true
	}
	cookie, err := c.Cookie(api.SessionCookie)
	return err == nil && cookie.Value == s.opts.Token
}

func (s *Server) handleUserData(c echo.Context) error {
	if !s.authorized(c) || s.opts.Email == "" {
		return c.JSON(http.StatusUnauthorized, envelope{"error": "User not authenticated"})
	}
	return c.JSON(http.StatusOK, envelope{"email": s.opts.Email})
}

func (s *Server) handleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{Name: api.SessionCookie, Value: "", HttpOnly: true, Expires: time.Unix(0, 0)})
	return c.JSON(http.StatusOK, envelope{"status": "success", "message": "Session closed"})
}

func (s *Server) handlePorts(c echo.Context) error {
	s.mu.Lock()
	ports := append([]api.Port{}, s.ports...)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, envelope{"status": "success", "ports": ports})
}

func (s *Server) present(port string) bool {
	for _, p := range s.ports {
		if p.Device == port {
			return true
		}
	}
	return false
}

func (s *Server) handleSerialNumber(c echo.Context) error {
	var body portBody
	if err := c.Bind(&body); err != nil || body.Port == "" {
		return fail(c, http.StatusBadRequest, "Port not provided.")
	}

	s.mu.Lock()
	sn, ok := s.serials[body.Port]
	present := s.present(body.Port)
	s.mu.Unlock()

	if !present || !ok || sn == "" {
		return fail(c, http.StatusNotFound, "Could not read the serial number.")
	}
	return c.JSON(http.StatusOK, envelope{"status": "success", "serial_number": sn})
}

func (s *Server) handlePortStatus(c echo.Context) error {
	var body portBody
	if err := c.Bind(&body); err != nil || body.Port == "" {
		return fail(c, http.StatusBadRequest, "Port not provided.")
	}
	s.mu.Lock()
	connected := s.present(body.Port)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, envelope{"status": "success", "connected": connected})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.mu.Lock()
	status := s.jobStatus
	s.mu.Unlock()
	return c.JSON(http.StatusOK, envelope{"status": status})
}

func (s *Server) record(endpoint string, c echo.Context) (map[string]string, error) {
	form, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.submissions = append(s.submissions, Submission{Endpoint: endpoint, Form: form})
	s.mu.Unlock()

	flat := make(map[string]string, len(form))
	for k := range form {
		flat[k] = form.Get(k)
	}
	return flat, nil
}

func (s *Server) handleExecuteAndProgram(c echo.Context) error {
	params, err := s.record("execute_and_program", c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid form body.")
	}

	s.mu.Lock()
	if s.programming {
		s.mu.Unlock()
		return fail(c, http.StatusOK, "A job is already running.")
	}
	if params["port"] == "" {
		s.mu.Unlock()
		return fail(c, http.StatusOK, "Select a port before running the job.")
	}
	s.programming = true
	s.mu.Unlock()

	script := s.opts.ParamsScript
	var first []Step
	if len(script) > 0 {
		// the first status is published before the reply, as the real backend does
		first, script = script[:1], script[1:]
		s.publishParams(first[0])
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		for _, step := range script {
			time.Sleep(s.opts.StepDelay)
			s.publishParams(step)
		}
		s.finishParams(params)
	}()

	return c.JSON(http.StatusOK, envelope{"status": "success", "message": "Job started and monitoring progress."})
}

func (s *Server) publishParams(step Step) {
	s.mu.Lock()
	s.jobStatus = step.Status
	s.mu.Unlock()
	s.Emit(push.EventJobStatus, push.StatusPayload{Status: step.Status, Message: step.Message})
}

func (s *Server) finishParams(params map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programming = false

	serial := params["NUMERO_SERIAL"]
	if serial == "" {
		return
	}
	delete(params, "port")
	cert := api.Certificate{
		SubcollectionName: params["USER"],
		DocumentID:        uuid.NewString(),
		Data: api.CertificateData{
			Date:    time.Now().UTC().Format(time.RFC1123),
			User:    params["USER"],
			Path:    "gs://cibtron-builds/" + serial + ".bin",
			EnvVars: params,
		},
	}
	s.certs[serial] = append([]api.Certificate{cert}, s.certs[serial]...)
	s.logger.Info("stored programming record", zap.String("serial", serial), zap.String("id", cert.DocumentID))
}

func (s *Server) handleSetSerialJob(c echo.Context) error {
	params, err := s.record("execute_set_serial_job", c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid form body.")
	}
	serial := params["NUMERO_SERIAL_A_PROGRAMAR"]
	switch {
	case !digits.MatchString(serial):
		return fail(c, http.StatusBadRequest, "Invalid serial number.")
	case len(params["CLAVE_ACCESO"]) != 10:
		return fail(c, http.StatusBadRequest, "Invalid access key.")
	case params["port"] == "":
		return fail(c, http.StatusBadRequest, "Port not provided.")
	}

	script := s.opts.SetSerialScript
	if s.opts.RejectKey != "" && params["CLAVE_ACCESO"] == s.opts.RejectKey {
		script = []Step{{Status: "auth_failed", Message: "Access key rejected."}}
	}

	port := params["port"]
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		for _, step := range script {
			time.Sleep(s.opts.StepDelay)
			payload := map[string]any{
				"status":   step.Status,
				"message":  step.Message,
				"log_data": map[string]string{"numero_serial_a_programar": serial},
			}
			s.Emit(push.EventSetSerialStatus, payload)
			if step.Status == "Programación de Serial Completa" {
				s.mu.Lock()
				s.serials[port] = serial
				s.mu.Unlock()
			}
		}
	}()

	return c.JSON(http.StatusOK, envelope{
		"status":            "success",
		"message":           "Set-serial job started.",
		"serial_programmed": serial,
		"uuid":              params["UUID"],
	})
}

func (s *Server) handleSearchSerial(c echo.Context) error {
	serial := strings.TrimSpace(c.QueryParam("serial_number"))
	if serial == "" {
		return fail(c, http.StatusBadRequest, "Serial number not provided.")
	}
	s.mu.Lock()
	list := s.certs[serial]
	s.mu.Unlock()
	if len(list) == 0 {
		return fail(c, http.StatusNotFound, "No information found for this serial number.")
	}
	return c.JSON(http.StatusOK, envelope{"status": "success", "data": list[0].Data})
}

func (s *Server) handleSearchCertificates(c echo.Context) error {
	serial := strings.TrimSpace(c.QueryParam("serial_number"))
	if serial == "" {
		return fail(c, http.StatusBadRequest, "Serial number not provided.")
	}
	s.mu.Lock()
	list := append([]api.Certificate{}, s.certs[serial]...)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, envelope{"status": "success", "data": list})
}

func (s *Server) handleReset(c echo.Context) error {
	port := c.FormValue("port")
	if port == "" {
		return fail(c, http.StatusBadRequest, "Port not provided.")
	}
	s.mu.Lock()
	present := s.present(port)
	s.mu.Unlock()
	if !present {
		return fail(c, http.StatusOK, "Port "+port+" is not connected.")
	}
	return c.JSON(http.StatusOK, envelope{"status": "success", "message": "Device reset to the serial reader firmware."})
}
