package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/tests/testutil"
	"github.com/stretchr/testify/suite"
)

const adminUID = "auth0|admin-1"

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
	Error *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// OrderAcceptanceTestSuite walks an order through its life over real HTTP
type OrderAcceptanceTestSuite struct {
	suite.Suite
	app    *testutil.TestApp
	server *httptest.Server
}

// SetupTest starts a fresh server per test
func (suite *OrderAcceptanceTestSuite) SetupTest() {
	suite.app = testutil.NewTestApp(suite.T(), testutil.AppOptions{})
	suite.server = httptest.NewServer(suite.app.Router)

	suite.app.CreateUser(suite.T(), clientUID, "Asha Client", models.RoleClient)
	suite.app.CreateUser(suite.T(), employeeUID, "Eve Employee", models.RoleEmployee)
	suite.app.CreateUser(suite.T(), adminUID, "Ada Admin", models.RoleAdmin)
}

// TearDownTest stops the server
func (suite *OrderAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *OrderAcceptanceTestSuite) send(req *http.Request, uid string, out interface{}) (int, envelope) {
	req.Header.Set(testutil.UserHeader, uid)
	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	var env envelope
	suite.Require().NoError(json.Unmarshal(raw, &env), string(raw))
	if out != nil && len(env.Data) > 0 {
		suite.Require().NoError(json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode, env
}

func (suite *OrderAcceptanceTestSuite) call(method, path, uid string, body interface{}, out interface{}) (int, envelope) {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		suite.Require().NoError(err)
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, suite.server.URL+"/api/v1"+path, payload)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	return suite.send(req, uid, out)
}

func (suite *OrderAcceptanceTestSuite) upload(path, uid, filename string, content []byte, category string, out interface{}) (int, envelope) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	suite.Require().NoError(err)
	_, err = part.Write(content)
	suite.Require().NoError(err)
	suite.Require().NoError(writer.WriteField("category", category))
	suite.Require().NoError(writer.Close())

	req, err := http.NewRequest(http.MethodPost, suite.server.URL+"/api/v1"+path, &body)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return suite.send(req, uid, out)
}

// TestOrderLifecycle covers creation through deletion
func (suite *OrderAcceptanceTestSuite) TestOrderLifecycle() {
	var order models.Order
	status, _ := suite.call(http.MethodPost, "/orders", clientUID, map[string]interface{}{
		"service_name": "Company Incorporation", "amount": 15000, "currency": "INR",
	}, &order)
	suite.Require().Equal(http.StatusCreated, status)
	suite.Equal(models.OrderStatus("pending"), order.Status)
	base := "/orders/" + order.ID

	status, _ = suite.call(http.MethodPost, base+"/payment", clientUID, map[string]interface{}{
		"payment_id": "pay_123", "payment_status": "paid",
	}, &order)
	suite.Require().Equal(http.StatusOK, status)
	suite.Equal(models.OrderStatus("processing"), order.Status)

	var doc models.Document
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")
	status, _ = suite.upload(base+"/documents", employeeUID, "moa.pdf", pdf, "legal", &doc)
	suite.Require().Equal(http.StatusCreated, status)
	suite.Equal("moa.pdf", doc.Name)

	var links []map[string]interface{}
	status, _ = suite.call(http.MethodPost, base+"/documents/download-links", clientUID,
		map[string]interface{}{"document_ids": []string{doc.ID}}, &links)
	suite.Require().Equal(http.StatusOK, status)
	suite.Require().Len(links, 1)

	status, _ = suite.call(http.MethodPatch, base+"/status", employeeUID,
		map[string]interface{}{"status": "completed", "note": "Certificate issued"}, &order)
	suite.Require().Equal(http.StatusOK, status)
	suite.Equal(models.OrderStatus("completed"), order.Status)

	var fetched models.Order
	status, _ = suite.call(http.MethodGet, base, clientUID, nil, &fetched)
	suite.Require().Equal(http.StatusOK, status)
	suite.Len(fetched.Documents, 1)
	suite.GreaterOrEqual(len(fetched.Timeline), 4)

	status, env := suite.call(http.MethodDelete, base, adminUID, map[string]string{"confirmation_code": "DELETE"}, nil)
	suite.Require().Equal(http.StatusOK, status, env.Error)
	suite.Equal(0, len(suite.app.Blobs.GetUploadedFiles()))

	status, env = suite.call(http.MethodGet, base, clientUID, nil, nil)
	suite.Equal(http.StatusNotFound, status)
	suite.Equal("ORDER_NOT_FOUND", env.Error.Code)
}

// TestOrderListPagination verifies the pagination block on list responses
func (suite *OrderAcceptanceTestSuite) TestOrderListPagination() {
	for i := 0; i < 3; i++ {
		status, _ := suite.call(http.MethodPost, "/orders", clientUID,
			map[string]interface{}{"service_name": "ITR Filing", "amount": 999}, nil)
		suite.Require().Equal(http.StatusCreated, status)
	}

	var orders []models.Order
	status, env := suite.call(http.MethodGet, "/orders?page=1&limit=2", employeeUID, nil, &orders)

	suite.Require().Equal(http.StatusOK, status)
	suite.Len(orders, 2)
	suite.Require().NotNil(env.Pagination)
	suite.Equal(3, env.Pagination.Total)
	suite.Equal(2, env.Pagination.TotalPages)
}

// TestUnregisteredUserIsTurnedAway verifies the 404 before registration
func (suite *OrderAcceptanceTestSuite) TestUnregisteredUserIsTurnedAway() {
	status, env := suite.call(http.MethodGet, "/orders", "auth0|stranger", nil, nil)

	suite.Equal(http.StatusNotFound, status)
	suite.False(env.Success)
	suite.Equal("USER_NOT_FOUND", env.Error.Code)
}

func TestOrderAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderAcceptanceTestSuite))
}
