package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/engine"
)

// AnalyzeHandler serves the single analysis endpoint over engine.Engine.
// engineAnalyze holds engine.Engine.Analyze's method value rather than the
// engine itself, so tests can swap in a fake without a real chain or oracle.
type AnalyzeHandler struct {
	engineAnalyze func(ctx context.Context, in engine.Input) (domain.EngineResult, error)
	logger        *slog.Logger
}

// NewAnalyzeHandler builds an AnalyzeHandler over eng.
func NewAnalyzeHandler(eng *engine.Engine, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{engineAnalyze: eng.Analyze, logger: logger.With("component", "api.analyze")}
}

// AnalyzeRequest is the POST /api/v1/analyze request body.
type AnalyzeRequest struct {
	ProxyAddress          string `json:"proxy_address" binding:"required"`
	OldImplementationPath string `json:"old_implementation_path" binding:"required"`
	NewImplementationPath string `json:"new_implementation_path" binding:"required"`
	ContractName          string `json:"contract_name,omitempty"`
}

// FindingResponse is one finding in the JSON response.
type FindingResponse struct {
	Code        string         `json:"code"`
	Severity    string         `json:"severity"`
	Confidence  string         `json:"confidence"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Remediation string         `json:"remediation"`
	Location    *LocationDTO   `json:"location,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// LocationDTO is the JSON projection of domain.Location.
type LocationDTO struct {
	Contract string  `json:"contract,omitempty"`
	Function string  `json:"function,omitempty"`
	Slot     *uint64 `json:"slot,omitempty"`
	Offset   *uint8  `json:"offset,omitempty"`
}

// AnalyzeResponse is the POST /api/v1/analyze response body.
type AnalyzeResponse struct {
	RunID           string            `json:"run_id"`
	Verdict         string            `json:"verdict"`
	HighestSeverity string            `json:"highest_severity,omitempty"`
	ExitCode        int               `json:"exit_code"`
	AnalyzerStatus  map[string]string `json:"analyzer_status"`
	Findings        []FindingResponse `json:"findings"`
	ReportMarkdown  string            `json:"report_markdown"`
}

// Analyze handles POST /api/v1/analyze.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	proxyAddr, err := domain.AddressFromHex(req.ProxyAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proxy_address", "message": err.Error()})
		return
	}

	h.logger.Info("analyze request received", "proxy", proxyAddr.String())

	start := time.Now()
	result, err := h.engineAnalyze(c.Request.Context(), engine.Input{
		ProxyAddress:          proxyAddr,
		OldImplementationPath: req.OldImplementationPath,
		NewImplementationPath: req.NewImplementationPath,
		ContractName:          req.ContractName,
	})
	duration := time.Since(start)

	if err != nil {
		h.logger.Error("analysis aborted", "error", err, "duration_ms", duration.Milliseconds())
		c.JSON(statusForError(err), gin.H{
			"error":   string(domain.KindOf(err)),
			"message": err.Error(),
		})
		return
	}

	h.logger.Info("analysis complete",
		"run_id", result.RunID,
		"verdict", result.Verdict,
		"findings", len(result.Findings),
		"duration_ms", duration.Milliseconds(),
	)

	resp := toAnalyzeResponse(result)
	c.Header("X-Exit-Code", strconv.Itoa(resp.ExitCode))
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /api/v1/health.
func (h *AnalyzeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func toAnalyzeResponse(r domain.EngineResult) AnalyzeResponse {
	resp := AnalyzeResponse{
		RunID:          r.RunID,
		Verdict:        string(r.Verdict),
		ExitCode:       r.ExitCode(),
		AnalyzerStatus: make(map[string]string, len(r.AnalyzerStatus)),
		Findings:       make([]FindingResponse, len(r.Findings)),
		ReportMarkdown: r.ReportMarkdown,
	}
	if r.HighestSeverity != nil {
		resp.HighestSeverity = string(*r.HighestSeverity)
	}
	for name, status := range r.AnalyzerStatus {
		resp.AnalyzerStatus[string(name)] = string(status)
	}
	for i, f := range r.Findings {
		resp.Findings[i] = FindingResponse{
			Code:        f.Code,
			Severity:    string(f.Severity),
			Confidence:  string(f.Confidence),
			Title:       f.Title,
			Description: f.Description,
			Remediation: f.Remediation,
			Details:     f.Details,
		}
		if f.Location != nil {
			resp.Findings[i].Location = &LocationDTO{
				Contract: f.Location.Contract,
				Function: f.Location.Function,
				Slot:     f.Location.Slot,
				Offset:   f.Location.Offset,
			}
		}
	}
	return resp
}

// statusForError maps the closed EngineError taxonomy (spec.md §7) to an
// HTTP status the same way cmd/upgradoor's exitCodeForError maps it to a
// process exit code.
func statusForError(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrKindInputInvalid, domain.ErrKindContractAmbiguous:
		return http.StatusBadRequest
	case domain.ErrKindToolchainUnavailable, domain.ErrKindToolchainFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
