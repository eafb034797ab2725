package response

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func render(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	return w
}

func TestSuccess(t *testing.T) {
	w := render(func(c *gin.Context) { Success(c, gin.H{"id": 1}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"code":200,"message":"success","data":{"id":1}}`, w.Body.String())
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(c *gin.Context, msg string)
		code int
	}{
		{"bad request", BadRequest, 400},
		{"not found", NotFound, 404},
		{"conflict", Conflict, 409},
		{"internal", InternalServerError, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := render(func(c *gin.Context) { tt.fn(c, "boom") })
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"success":false,"code":`+strconv.Itoa(tt.code)+`,"message":"boom"}`, w.Body.String())
		})
	}
}

func TestList(t *testing.T) {
	w := render(func(c *gin.Context) { List(c, []string{"a", "b"}, 2) })
	assert.JSONEq(t, `{"success":true,"code":200,"message":"success","data":{"list":["a","b"],"total":2}}`, w.Body.String())
}
