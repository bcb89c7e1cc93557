package httpapi

import (
	"net/http"
)

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	filter, meta, err := listQuery(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	items, err := a.service.List(r.Context(), filter)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	meta.Count = len(items)
	a.respondList(w, items, meta)
}

func (a *API) createNotification(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	params, err := req.params(a.now())
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	n, err := a.service.Create(r.Context(), params)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondData(w, http.StatusCreated, n)
}

func (a *API) getNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	n, stats, err := a.service.GetWithStats(r.Context(), id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondData(w, http.StatusOK, notificationPayload{Notification: *n, Stats: &stats})
}

func (a *API) updateNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	params, err := req.params(a.now())
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	n, err := a.service.Update(r.Context(), id, params)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondData(w, http.StatusOK, n)
}

func (a *API) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	if err := a.service.Delete(r.Context(), id); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respond(w, http.StatusOK, envelope{Success: true})
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	stats, err := a.service.Stats(r.Context(), id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondData(w, http.StatusOK, stats)
}

func (a *API) retryNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	n, err := a.service.Retry(r.Context(), id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondData(w, http.StatusOK, n)
}
