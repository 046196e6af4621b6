package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-divisions/models"
	"github.com/Dosada05/tournament-divisions/services"
)

type DivisionHandler struct {
	divisionService services.DivisionService
	rules           models.RuleTable
}

// NewDivisionHandler serves division endpoints. rules is the table used when
// a request does not carry its own.
func NewDivisionHandler(ds services.DivisionService, rules models.RuleTable) *DivisionHandler {
	return &DivisionHandler{divisionService: ds, rules: rules}
}

type generateDivisionsRequest struct {
	Competitors []models.Competitor `json:"competitors" validate:"required,dive"`
	RuleTable   *models.RuleTable   `json:"rule_table,omitempty"`
}

func (h *DivisionHandler) GenerateDivisions(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input generateDivisionsRequest
	if !decodeRequest(w, r, &input) {
		return
	}

	table := h.rules
	if input.RuleTable != nil {
		table = *input.RuleTable
	}

	result, err := h.divisionService.GenerateDivisions(r.Context(), tournamentID, input.Competitors, table)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DivisionHandler) ListDivisions(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	divs, err := h.divisionService.ListDivisions(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if divs == nil {
		divs = []*models.Division{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"divisions": divs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DivisionHandler) GetDivision(w http.ResponseWriter, r *http.Request) {
	divisionID, err := getIDFromURL(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	division, err := h.divisionService.GetDivision(r.Context(), divisionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"division": division}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Rules returns the rule table applied when a generation request omits one.
func (h *DivisionHandler) Rules(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"rule_table": h.rules}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
