// Package fakebackend is a scripted stand-in for the programming backend.
// It serves the same HTTP routes and Socket.IO status events so the console
// can be rehearsed and tested without a taximeter attached.
package fakebackend

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
)

// Step is one scripted job status.
type Step struct {
	Status  string `yaml:"status"`
	Message string `yaml:"message"`
}

// Options is the scripted world the server simulates.
type Options struct {
	Email   string            `yaml:"email"`
	Token   string            `yaml:"token"`
	Ports   []api.Port        `yaml:"ports"`
	Serials map[string]string `yaml:"serials"`
	// Certificates are keyed by device serial.
	Certificates    map[string][]api.Certificate `yaml:"-"`
	ParamsScript    []Step                       `yaml:"params_script"`
	SetSerialScript []Step                       `yaml:"set_serial_script"`
	// RejectKey is the access key that makes the set-serial job fail.
	RejectKey    string        `yaml:"reject_key"`
	StepDelay    time.Duration `yaml:"step_delay"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// DefaultOptions is a bench with one adapter and a device that succeeds.
func DefaultOptions() Options {
	return Options{
		Email: "tecnico@wavesbyte.cl",
		Ports: []api.Port{
			{Device: "COM3", Description: "USB-SERIAL CH340", HWID: "USB VID:PID=1A86:7523"},
		},
		Serials: map[string]string{"COM3": "000123"},
		ParamsScript: []Step{
			{Status: "Compilando WavesByte Cibtron WB-001..."},
			{Status: "Compilando WavesByte Cibtron WB-001..."},
			{Status: "Descargando binario", Message: "gs://cibtron-builds/000123.bin"},
			{Status: "Programando dispositivo"},
			{Status: "Finalizado"},
		},
		SetSerialScript: []Step{
			{Status: "Validando clave de acceso"},
			{Status: "Escribiendo serial"},
			{Status: "Programación de Serial Completa"},
		},
		RejectKey:    "0000000000",
		StepDelay:    750 * time.Millisecond,
		PingInterval: 25 * time.Second,
	}
}

// Submission is a recorded job submission.
type Submission struct {
	Endpoint string
	Form     url.Values
}

// Server is the fake backend.
type Server struct {
	echo   *echo.Echo
	opts   Options
	hub    *hub
	logger *zap.Logger

	mu          sync.Mutex
	ports       []api.Port
	serials     map[string]string
	certs       map[string][]api.Certificate
	jobStatus   string
	programming bool
	submissions []Submission
	jobs        sync.WaitGroup
}

// New builds the server and its routes.
func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	s := &Server{
		echo:      echo.New(),
		opts:      opts,
		hub:       newHub(opts.PingInterval, logger),
		logger:    logger,
		ports:     append([]api.Port(nil), opts.Ports...),
		serials:   map[string]string{},
		certs:     map[string][]api.Certificate{},
		jobStatus: "Listo",
	}
	for k, v := range opts.Serials {
		s.serials[k] = v
	}
	for k, v := range opts.Certificates {
		s.certs[k] = append([]api.Certificate(nil), v...)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request", zap.String("method", v.Method), zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/get_user_data", s.handleUserData)
	e.POST("/logout", s.handleLogout)
	e.GET("/get_ports", s.handlePorts)
	e.POST("/get_serial_number", s.handleSerialNumber)
	e.POST("/check_port_status", s.handlePortStatus)
	e.POST("/execute_and_program", s.handleExecuteAndProgram)
	e.POST("/execute_set_serial_job", s.handleSetSerialJob)
	e.GET("/get_job_status", s.handleJobStatus)
	e.GET("/search_serial", s.handleSearchSerial)
	e.GET("/search_certificates", s.handleSearchCertificates)
	e.POST("/resetcibtron", s.handleReset)
	e.GET("/socket.io/", s.hub.handle)
}

// Handler exposes the routes for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.echo.Listener = l
	err := s.echo.Start("")
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, closes push clients and waits for
// running scripts.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	err := s.echo.Shutdown(ctx)
	s.Wait()
	return err
}

// Wait blocks until every running job script finished.
func (s *Server) Wait() {
	s.jobs.Wait()
}

// Emit broadcasts an event to every connected push client.
func (s *Server) Emit(event string, payload any) {
	s.hub.broadcast(event, payload)
}

// Clients returns the number of connected push clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

// Unplug removes port from the bench.
func (s *Server) Unplug(port string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.ports {
		if p.Device == port {
			s.ports = append(s.ports[:i], s.ports[i+1:]...)
			return
		}
	}
}

// Plug adds a port with a device reporting serial.
func (s *Server) Plug(p api.Port, serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports = append(s.ports, p)
	s.serials[p.Device] = serial
}

// Submissions returns the recorded job submissions.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}
