package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/canon"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/view"
)

const (
	msgCreateFailed     = "박람회 등록에 실패했습니다. 다시 시도해주세요."
	msgUpdateFailed     = "박람회 수정에 실패했습니다. 다시 시도해주세요."
	msgDeleteFailed     = "박람회 삭제에 실패했습니다. 다시 시도해주세요."
	msgCategoriesFailed = "카테고리 정보를 불러오는데 실패했습니다."
)

// FairTypes are the selectable fair types in the edit form.
var FairTypes = []string{"웨딩", "스드메", "허니문", "예물", "한복"}

type statusOption struct{ Value, Label string }

var statusOptions = []statusOption{
	{"all", "전체"},
	{"ongoing", "진행중"},
	{"upcoming", "예정"},
	{"ended", "종료"},
}

type fairsData struct {
	Filter     fairapi.AdminListParams
	Statuses   []statusOption
	Categories []fairapi.Category
	Rows       []view.Card
	Pager      view.Pager
	Err        string
}

func validStatus(s string) string {
	for _, o := range statusOptions {
		if o.Value == s {
			return s
		}
	}
	return "all"
}

func (d AdminDeps) listFairs(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := logger.FromContext(ctx)
	q := req.URL.Query()
	page := pageParam(q)

	region := canon.Region(q.Get("category1"))
	if region == "" {
		region = fairapi.AllRegions
	}
	params := fairapi.AdminListParams{
		Search:    canon.Query(q.Get("search")),
		Status:    validStatus(q.Get("status")),
		Category1: region,
	}
	data := fairsData{Filter: params, Statuses: statusOptions}

	cats, err := d.API.Categories(ctx)
	if err != nil {
		log.Error("categories failed", "err", err)
	}
	data.Categories = cats

	params.Page = strconv.Itoa(page)
	params.Size = strconv.Itoa(adminPageSize)
	res, err := d.API.AdminFairsList(ctx, params)
	if err != nil {
		log.Error("admin fair list failed", "err", err)
		data.Err = view.MsgLoadFailed
		d.Views.Render(w, req, http.StatusOK, "admin_fairs", d.page(req, "박람회 관리", data))
		return
	}
	now := time.Now()
	data.Rows = make([]view.Card, 0, len(res.Fairs))
	for _, f := range res.Fairs {
		c := view.CardFromFair(f, now)
		c.Dates = fairapi.DateOnly(f.StartDate) + " ~ " + fairapi.DateOnly(f.EndDate)
		data.Rows = append(data.Rows, c)
	}
	data.Pager = view.NewPager("/admin/fairs", q, page, res.TotalPages, adminListWindow)
	d.Views.Render(w, req, http.StatusOK, "admin_fairs", d.page(req, "박람회 관리", data))
}

type fairFormData struct {
	ID            string
	Action        string
	Form          fairapi.FairForm
	Types         []string
	Categories    []fairapi.Category
	CategoriesErr string
}

func (d AdminDeps) formData(req *http.Request, id string, form fairapi.FairForm) fairFormData {
	action := "/admin/fairs"
	if id != "" {
		action = "/admin/fairs/" + url.PathEscape(id)
	}
	data := fairFormData{ID: id, Action: action, Form: form, Types: FairTypes}
	cats, err := d.API.Categories(req.Context())
	if err != nil {
		logger.FromContext(req.Context()).Error("categories failed", "err", err)
		data.CategoriesErr = msgCategoriesFailed
	}
	data.Categories = cats
	return data
}

// formFromRequest reads the full record from a submitted form.
func formFromRequest(req *http.Request) (fairapi.FairForm, error) {
	if err := req.ParseForm(); err != nil {
		return fairapi.FairForm{}, err
	}
	v := func(k string) string { return strings.TrimSpace(req.PostForm.Get(k)) }
	return fairapi.FairForm{
		Title:       v("title"),
		Category1:   v("category1"),
		Category2:   v("category2"),
		StartDate:   v("start_date"),
		EndDate:     v("end_date"),
		RedirectURL: v("redirect_url"),
		Address:     v("address"),
		Description: v("description"),
		Promotion:   v("promotion"),
		ImageURL:    v("image_url"),
		Type:        v("type"),
	}, nil
}

func (d AdminDeps) newFair(w http.ResponseWriter, req *http.Request) {
	d.Views.Render(w, req, http.StatusOK, "admin_fair_form", d.page(req, "박람회 등록", d.formData(req, "", fairapi.FairForm{})))
}

func (d AdminDeps) createFair(w http.ResponseWriter, req *http.Request) {
	form, err := formFromRequest(req)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	err = d.API.AddFair(req.Context(), form)
	d.record(req, w, "fair.create", form.Title, err, map[string]any{"title": form.Title})
	if err != nil {
		p := d.page(req, "박람회 등록", d.formData(req, "", form))
		p.Alert = msgCreateFailed
		d.Views.Render(w, req, http.StatusBadGateway, "admin_fair_form", p)
		return
	}
	http.Redirect(w, req, "/admin/fairs", http.StatusSeeOther)
}

func (d AdminDeps) editFair(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	f, err := d.API.FairByID(req.Context(), id)
	if err != nil {
		logger.FromContext(req.Context()).Error("fair load failed", "id", id, "err", err)
		status := http.StatusBadGateway
		if fairapi.IsNotFound(err) {
			status = http.StatusNotFound
		}
		p := d.page(req, "박람회 수정", fairsData{Statuses: statusOptions, Err: view.MsgLoadFailed})
		d.Views.Render(w, req, status, "admin_fairs", p)
		return
	}
	d.Views.Render(w, req, http.StatusOK, "admin_fair_form", d.page(req, "박람회 수정", d.formData(req, f.ID, fairapi.FormFromFair(*f))))
}

// updateFair sends the whole record; the list is reloaded from the API afterwards.
func (d AdminDeps) updateFair(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	form, err := formFromRequest(req)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	err = d.API.UpdateFair(req.Context(), id, form)
	d.record(req, w, "fair.update", id, err, map[string]any{"title": form.Title})
	if err != nil {
		p := d.page(req, "박람회 수정", d.formData(req, id, form))
		p.Alert = msgUpdateFailed
		d.Views.Render(w, req, http.StatusBadGateway, "admin_fair_form", p)
		return
	}
	http.Redirect(w, req, "/admin/fairs", http.StatusSeeOther)
}

type deleteData struct {
	ID    string
	Title string
	Dates string
}

func (d AdminDeps) confirmDelete(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	data := deleteData{ID: id}
	if f, err := d.API.FairByID(req.Context(), id); err == nil {
		data.Title = f.Title
		data.Dates = fairapi.DateOnly(f.StartDate) + " ~ " + fairapi.DateOnly(f.EndDate)
	} else {
		logger.FromContext(req.Context()).Warn("fair load for delete failed", "id", id, "err", err)
		data.Title = id
	}
	d.Views.Render(w, req, http.StatusOK, "admin_fair_delete", d.page(req, "박람회 삭제", data))
}

// deleteFair only calls the API when the confirmation form was submitted.
func (d AdminDeps) deleteFair(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := req.ParseForm(); err != nil || req.PostForm.Get("confirm") != "yes" {
		http.Redirect(w, req, "/admin/fairs/"+url.PathEscape(id)+"/delete", http.StatusSeeOther)
		return
	}
	_, err := d.API.DeleteFair(req.Context(), id)
	d.record(req, w, "fair.delete", id, err, nil)
	if err != nil {
		p := d.page(req, "박람회 삭제", deleteData{ID: id, Title: id})
		p.Alert = msgDeleteFailed
		d.Views.Render(w, req, http.StatusBadGateway, "admin_fair_delete", p)
		return
	}
	http.Redirect(w, req, "/admin/fairs", http.StatusSeeOther)
}
