package views

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/GrainArc/LandCollect/models"
	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Boundary{}, &models.CaptureDraft{}, &models.TileCache{}))
	return db
}

func newBoundaryRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	models.DB = newTestDB(t)
	bc := NewBoundaryController()
	r := gin.New()
	r.POST("/collect/SaveBoundary", bc.SaveBoundary)
	r.GET("/collect/GetBoundary", bc.GetBoundary)
	r.GET("/collect/GetBoundaryList", bc.GetBoundaryList)
	r.GET("/collect/DelBoundary", bc.DelBoundary)
	r.GET("/collect/GetDraft", bc.GetDraft)
	r.POST("/collect/DownloadBoundary", bc.DownloadBoundary)
	r.POST("/collect/UploadBoundary", bc.UploadBoundary)
	r.POST("/collect/ImportBoundary", bc.ImportBoundary)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// chdirTemp 导出与上传走相对路径的OutFile/TempFile，测试切到临时目录
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
	return dir
}

const squareGeometry = `{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]}`

func squareFeatureCollection(t *testing.T, name string) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0}}})
	f.Properties["name"] = name
	f.Properties["权利人"] = "张三"
	fc.Append(f)
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	return data
}

func TestSaveBoundaryRESTComputesMetrics(t *testing.T) {
	r := newBoundaryRouter(t)

	w := doJSON(t, r, http.MethodPost, "/collect/SaveBoundary", map[string]interface{}{
		"form_id":  "form-1",
		"name":     "苏坡村东地块",
		"geometry": json.RawMessage(squareGeometry),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["bsm"])

	var b models.Boundary
	require.NoError(t, models.DB.Where("bsm = ?", resp["bsm"]).First(&b).Error)
	assert.Equal(t, "苏坡村东地块", b.Name)
	assert.InEpsilon(t, 1.24, b.AreaHectare, 0.01)
	assert.InEpsilon(t, 445, b.Perimeter, 0.01)
	assert.Equal(t, 4, b.VertexCount)
}

func TestSaveBoundaryRESTRejectsNonPolygon(t *testing.T) {
	r := newBoundaryRouter(t)
	w := doJSON(t, r, http.MethodPost, "/collect/SaveBoundary", map[string]interface{}{
		"name":     "点数据",
		"geometry": json.RawMessage(`{"type":"Point","coordinates":[103.98,30.66]}`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoundaryListAndDelete(t *testing.T) {
	r := newBoundaryRouter(t)
	for _, name := range []string{"甲地块", "乙地块"} {
		w := doJSON(t, r, http.MethodPost, "/collect/SaveBoundary", map[string]interface{}{
			"form_id":  "form-1",
			"name":     name,
			"geometry": json.RawMessage(squareGeometry),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/collect/GetBoundaryList?form_id=form-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Boundary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)

	w = doJSON(t, r, http.MethodGet, "/collect/DelBoundary?bsm="+list[0].BSM, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/collect/GetBoundary?bsm="+list[0].BSM, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBoundaryRequiresBsm(t *testing.T) {
	r := newBoundaryRouter(t)
	w := doJSON(t, r, http.MethodGet, "/collect/GetBoundary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDraftNotFound(t *testing.T) {
	r := newBoundaryRouter(t)
	w := doJSON(t, r, http.MethodGet, "/collect/GetDraft?session_id=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportBoundaryFeatureCollection(t *testing.T) {
	r := newBoundaryRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/collect/ImportBoundary?form_id=form-9",
		bytes.NewReader(squareFeatureCollection(t, "导入甲")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Count int      `json:"count"`
		Bsms  []string `json:"bsms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)

	var b models.Boundary
	require.NoError(t, models.DB.Where("bsm = ?", resp.Bsms[0]).First(&b).Error)
	assert.Equal(t, "导入甲", b.Name)
	assert.Equal(t, "form-9", b.FormId)

	var attrs map[string]interface{}
	require.NoError(t, json.Unmarshal(b.Attributes, &attrs))
	assert.Equal(t, "张三", attrs["权利人"])
}

func TestImportBoundarySplitsMultiPolygon(t *testing.T) {
	r := newBoundaryRouter(t)

	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.MultiPolygon{
		{{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0}}},
		{{{1, 0}, {1.001, 0}, {1.001, 0.001}, {1, 0.001}, {1, 0}}},
	})
	f.Properties["name"] = "两块地"
	fc.Append(f)
	data, err := json.Marshal(fc)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/collect/ImportBoundary", bytes.NewReader(data))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestDownloadBoundaryGeojson(t *testing.T) {
	dir := chdirTemp(t)
	r := newBoundaryRouter(t)

	w := doJSON(t, r, http.MethodPost, "/collect/SaveBoundary", map[string]interface{}{
		"form_id":  "form-1",
		"name":     "导出地块",
		"geometry": json.RawMessage(squareGeometry),
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/collect/DownloadBoundary", DownloadBoundaryReq{
		Format: "geojson",
		FormId: "form-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	path := w.Body.String()
	assert.Contains(t, path, "/OutFile/")
	assert.Contains(t, path, "采集成果.geojson")

	data, err := os.ReadFile(filepath.Join(dir, path))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "导出地块", fc.Features[0].Properties["name"])
}

func TestDownloadBoundaryEmptySelection(t *testing.T) {
	chdirTemp(t)
	r := newBoundaryRouter(t)
	w := doJSON(t, r, http.MethodPost, "/collect/DownloadBoundary", DownloadBoundaryReq{
		Format: "geojson",
		FormId: "无此表单",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadBoundaryGeojsonFile(t *testing.T) {
	dir := chdirTemp(t)
	r := newBoundaryRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "import.geojson")
	require.NoError(t, err)
	_, err = fw.Write(squareFeatureCollection(t, "上传甲"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("form_id", "form-2"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/collect/UploadBoundary", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	var count int64
	models.DB.Model(&models.Boundary{}).Where("form_id = ?", "form-2").Count(&count)
	assert.EqualValues(t, 1, count)

	// 导入完成后临时目录被清空
	entries, err := os.ReadDir(filepath.Join(dir, "TempFile"))
	require.NoError(t, err)
	for _, e := range entries {
		sub, err := os.ReadDir(filepath.Join(dir, "TempFile", e.Name()))
		require.NoError(t, err)
		assert.Empty(t, sub)
	}
}
