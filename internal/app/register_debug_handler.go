// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
	"github.com/relabs-tech/inertial_mlc/internal/metrics"
	"github.com/relabs-tech/inertial_mlc/internal/sensors"
)

// RegisterDebugger serves the websocket register debugger and the REST API
// next to it.
type RegisterDebugger struct {
	mgr     *sensors.IMUManager
	metrics *metrics.Metrics
	allowed writeRanges
}

// NewRegisterDebugger parses allowedRanges (REGISTER_DEBUG_ALLOWED_RANGES).
func NewRegisterDebugger(mgr *sensors.IMUManager, m *metrics.Metrics, allowedRanges string) (*RegisterDebugger, error) {
	allowed, err := parseWriteRanges(allowedRanges)
	if err != nil {
		return nil, err
	}
	return &RegisterDebugger{mgr: mgr, metrics: m, allowed: allowed}, nil
}

// Handler routes /ws, /api/* and /metrics.
func (d *RegisterDebugger) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.HandleRegisterDebugWS)
	mux.HandleFunc("/api/fifo", d.HandleFIFO)
	mux.HandleFunc("/api/status", d.HandleStatus)
	mux.HandleFunc("/api/latest", d.HandleLatest)
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics.Handler())
	}
	return mux
}

// RegisterDebugSession holds WebSocket connection state for register debugging
type RegisterDebugSession struct {
	Conn *websocket.Conn
	dbg  *RegisterDebugger
}

// RegisterResponse is every message sent to the browser.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "page_data", "route", "odr", "export_config", "error"
	Bank        string                 `json:"bank,omitempty"`
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Data        string                 `json:"data,omitempty"`      // hex, page transfers
	Registers   map[string]string      `json:"registers,omitempty"` // for bulk read
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Pin         string                 `json:"pin,omitempty"`
	Route       string                 `json:"route,omitempty"`
	Sensor      string                 `json:"sensor,omitempty"`
	ODR         string                 `json:"odr,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Config      *RegisterConfigFile    `json:"config,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// RegisterConfigFile represents the JSON structure for exported register configuration
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Bank      string            `json:"bank"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// HandleRegisterDebugWS handles the WebSocket connection for register debugging
func (d *RegisterDebugger) HandleRegisterDebugWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &RegisterDebugSession{Conn: conn, dbg: d}

	// Send the user bank map on connection
	if err := session.sendRegisterMap(ism330dhcx.UserBank); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var rawMsg map[string]interface{}
		if err := conn.ReadJSON(&rawMsg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			break
		}

		action, ok := rawMsg["action"].(string)
		if !ok {
			session.sendError("missing or invalid action field")
			continue
		}
		session.dispatch(action, rawMsg)
	}
}

func (s *RegisterDebugSession) dispatch(action string, rawMsg map[string]interface{}) {
	if action == "get_map" {
		bank, err := bankField(rawMsg)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendRegisterMap(bank)
		return
	}

	handlers := map[string]func(map[string]interface{}) error{
		"read":          s.handleRead,
		"read_all":      s.handleReadAll,
		"write":         s.handleWrite,
		"read_page":     s.handleReadPage,
		"write_page":    s.handleWritePage,
		"get_routes":    s.handleGetRoutes,
		"set_route":     s.handleSetRoute,
		"set_odr":       s.handleSetODR,
		"export_config": s.handleExportConfig,
	}
	h, ok := handlers[action]
	if !ok {
		s.sendError(fmt.Sprintf("unknown action: %s", action))
		return
	}
	if err := h(rawMsg); err != nil {
		s.sendError(err.Error())
	}
}

func bankField(rawMsg map[string]interface{}) (ism330dhcx.Bank, error) {
	name, _ := rawMsg["bank"].(string)
	return ism330dhcx.ParseBank(name)
}

func parseByte(field, s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %s", field, s)
	}
	return byte(v), nil
}

func parsePageAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid page address: %s", s)
	}
	return uint16(v), nil
}

func stamp() string { return time.Now().Format(time.RFC3339) }

func hexRegisters(regs map[byte]byte) map[string]string {
	out := make(map[string]string, len(regs))
	for addr, value := range regs {
		out[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", value)
	}
	return out
}

func (s *RegisterDebugSession) handleRead(rawMsg map[string]interface{}) error {
	bank, err := bankField(rawMsg)
	if err != nil {
		return err
	}
	addr, _ := rawMsg["addr"].(string)
	if addr == "" {
		return fmt.Errorf("missing addr field")
	}
	reg, err := parseByte("address", addr)
	if err != nil {
		return err
	}

	value, err := s.dbg.mgr.ReadRegister(bank, reg)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Bank:      bank.String(),
		Address:   fmt.Sprintf("0x%02X", reg),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: stamp(),
	})
}

func (s *RegisterDebugSession) handleReadAll(rawMsg map[string]interface{}) error {
	bank, err := bankField(rawMsg)
	if err != nil {
		return err
	}
	registers, err := s.dbg.mgr.ReadAllRegisters(bank)
	if err != nil {
		return fmt.Errorf("read all error: %w", err)
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Bank:      bank.String(),
		Registers: hexRegisters(registers),
		Timestamp: stamp(),
	})
}

func (s *RegisterDebugSession) handleWrite(rawMsg map[string]interface{}) error {
	bank, err := bankField(rawMsg)
	if err != nil {
		return err
	}
	addr, _ := rawMsg["addr"].(string)
	valueStr, _ := rawMsg["value"].(string)
	if addr == "" || valueStr == "" {
		return fmt.Errorf("missing addr or value field")
	}
	reg, err := parseByte("address", addr)
	if err != nil {
		return err
	}
	value, err := parseByte("value", valueStr)
	if err != nil {
		return err
	}

	if !s.dbg.allowed.register(bank, reg) {
		return fmt.Errorf("register 0x%02X (%s bank) not in allowed write ranges", reg, bank)
	}
	if err := s.dbg.mgr.WriteRegister(bank, reg, value); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Bank:      bank.String(),
		Address:   fmt.Sprintf("0x%02X", reg),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: stamp(),
		Message:   "write successful",
	})
}

func (s *RegisterDebugSession) handleReadPage(rawMsg map[string]interface{}) error {
	addrStr, _ := rawMsg["addr"].(string)
	addr, err := parsePageAddr(addrStr)
	if err != nil {
		return err
	}
	n := 1
	if l, ok := rawMsg["len"].(float64); ok {
		n = int(l)
	}
	if n < 1 || n > ism330dhcx.PagedMemorySize {
		return fmt.Errorf("invalid len %d", n)
	}
	data, err := s.dbg.mgr.ReadPage(addr, n)
	if err != nil {
		return fmt.Errorf("page read error: %w", err)
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "page_data",
		Address:   fmt.Sprintf("0x%03X", addr),
		Data:      hex.EncodeToString(data),
		Timestamp: stamp(),
	})
}

func (s *RegisterDebugSession) handleWritePage(rawMsg map[string]interface{}) error {
	if !s.dbg.allowed.page {
		return fmt.Errorf("paged memory writes not allowed")
	}
	addrStr, _ := rawMsg["addr"].(string)
	addr, err := parsePageAddr(addrStr)
	if err != nil {
		return err
	}
	dataStr, _ := rawMsg["data"].(string)
	data, err := hex.DecodeString(strings.TrimPrefix(dataStr, "0x"))
	if err != nil || len(data) == 0 {
		return fmt.Errorf("invalid data: %q", dataStr)
	}
	if err := s.dbg.mgr.WritePage(addr, data); err != nil {
		return fmt.Errorf("page write error: %w", err)
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "page_data",
		Address:   fmt.Sprintf("0x%03X", addr),
		Data:      hex.EncodeToString(data),
		Timestamp: stamp(),
		Message:   "write successful",
	})
}

func (s *RegisterDebugSession) handleGetRoutes(rawMsg map[string]interface{}) error {
	for _, pin := range []ism330dhcx.Pin{ism330dhcx.Pin1, ism330dhcx.Pin2} {
		t, err := s.dbg.mgr.Route(pin)
		if err != nil {
			return fmt.Errorf("route read error: %w", err)
		}
		resp := RegisterResponse{Type: "route", Pin: pin.String(), Route: t.String(),
			Extra: map[string]interface{}{"sources": ism330dhcx.RouteNames(pin)}}
		if err := s.Conn.WriteJSON(resp); err != nil {
			return err
		}
	}
	return nil
}

func (s *RegisterDebugSession) handleSetRoute(rawMsg map[string]interface{}) error {
	pinStr, _ := rawMsg["pin"].(string)
	routeStr, _ := rawMsg["route"].(string)
	pin, err := ism330dhcx.ParsePin(pinStr)
	if err != nil {
		return err
	}
	t, err := ism330dhcx.ParseRouteTable(routeStr)
	if err != nil {
		return err
	}
	if !s.dbg.allowed.routes {
		return fmt.Errorf("route changes not allowed")
	}
	if err := s.dbg.mgr.SetRoute(pin, t); err != nil {
		return fmt.Errorf("set route error: %w", err)
	}
	return s.Conn.WriteJSON(RegisterResponse{Type: "route", Pin: pin.String(), Route: t.String(), Message: "route updated"})
}

func (s *RegisterDebugSession) handleSetODR(rawMsg map[string]interface{}) error {
	sensor, _ := rawMsg["sensor"].(string)
	hz, ok := rawMsg["hz"].(float64)
	if sensor == "" || !ok {
		return fmt.Errorf("missing sensor or hz field")
	}
	odr, err := s.dbg.mgr.SetODR(sensor, hz)
	if err != nil {
		return fmt.Errorf("set odr error: %w", err)
	}
	return s.Conn.WriteJSON(RegisterResponse{Type: "odr", Sensor: sensor, ODR: odr.String(), Timestamp: stamp()})
}

func (s *RegisterDebugSession) handleExportConfig(rawMsg map[string]interface{}) error {
	bank, err := bankField(rawMsg)
	if err != nil {
		return err
	}
	registers, err := s.dbg.mgr.ExportRegisterConfig(bank)
	if err != nil {
		return fmt.Errorf("export error: %w", err)
	}
	cfg := &RegisterConfigFile{
		Version:   1,
		Bank:      bank.String(),
		Timestamp: stamp(),
		Registers: hexRegisters(registers),
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:     "export_config",
		Bank:     bank.String(),
		Message:  "config exported",
		Config:   cfg,
		Filename: fmt.Sprintf("ism330dhcx_%s_%s_registers.json", bank, time.Now().Format("20060102_150405")),
	})
}

func (s *RegisterDebugSession) sendRegisterMap(bank ism330dhcx.Bank) error {
	regMap, err := s.dbg.mgr.GetRegisterMap(bank)
	if err != nil {
		s.sendError(err.Error())
		return nil
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:        "register_map",
		Bank:        bank.String(),
		RegisterMap: regMap,
	})
}

func (s *RegisterDebugSession) sendError(message string) {
	s.Conn.WriteJSON(RegisterResponse{Type: "error", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("register_debug: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HandleFIFO drains the FIFO and returns the batch.
func (d *RegisterDebugger) HandleFIFO(w http.ResponseWriter, r *http.Request) {
	batch, err := d.mgr.Drain()
	if err != nil && len(batch.Samples) == 0 {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// HandleStatus returns rates, engines, FIFO state and routes.
func (d *RegisterDebugger) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := d.mgr.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleLatest returns the last sample of every record kind.
func (d *RegisterDebugger) HandleLatest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.mgr.Latest())
}
