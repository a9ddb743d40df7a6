package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scailotto/backend/internal/common"
	"github.com/stretchr/testify/require"
)

func Test_NewHandler(t *testing.T) {
	common.IncCounter(common.TicketPurchaseTotal, "scai", "committed")

	w := httptest.NewRecorder()
	NewHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `ticket_purchase_total{network="scai",outcome="committed"}`)
}
