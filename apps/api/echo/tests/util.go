package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	echoapi "github.com/cmeonline/enrollments/apps/api/echo"
	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func newTestConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "Program Enrollments",
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			Host:               "example.com",
			DisableReqLogs:     true,
			JWTExpirationDelta: time.Hour,
		},
		Enrollment: core.EnrollmentConfig{DefaultPageSize: 100},
	}
}

func setup(t *testing.T) (*echoapi.Server, *testutil.Env, *core.Config) {
	env := testutil.NewInmemEnv(t)
	conf := newTestConfig()
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		CatalogSvc:    env.CatalogSvc,
		EnrollmentSvc: env.EnrollmentSvc,
		Translator:    env.Translator,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return srv, env, conf
}

type httpErr struct {
	Error string `json:"error"`
}

type notFoundErr struct {
	DeveloperMessage string `json:"developer_message"`
	ErrorCode        string `json:"error_code"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, staff bool) string {
	claims := echoapi.NewClaims(conf, "registrar-1", "registrar", "registrar@cme.test", staff)
	token, err := echoapi.GenerateToken(claims, conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, srv http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
