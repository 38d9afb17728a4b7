package http

import (
	"encoding/xml"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sci2zero/cris-exchange/internal/oaipmh"
	"github.com/sci2zero/cris-exchange/internal/registry"
	"github.com/sci2zero/cris-exchange/internal/usecase"
)

type Handler struct {
	protocol    *usecase.ProtocolService
	registry    *registry.Registry
	adminSecret string
}

func NewHandler(protocol *usecase.ProtocolService, reg *registry.Registry, adminSecret string) *Handler {
	return &Handler{protocol: protocol, registry: reg, adminSecret: adminSecret}
}

// OAI serves one endpoint of the OAI-PMH API. The handler path segment
// selects the institutional endpoint configuration; the verb and its
// arguments arrive as query (or POST form) parameters.
func (h *Handler) OAI(w http.ResponseWriter, r *http.Request) {
	handlerID := chi.URLParam(r, "handler")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "unreadable request", http.StatusBadRequest)
		return
	}

	verb := r.Form.Get("verb")
	req := oaipmh.Request{
		Verb:            verb,
		Identifier:      r.Form.Get("identifier"),
		MetadataPrefix:  r.Form.Get("metadataPrefix"),
		From:            r.Form.Get("from"),
		Until:           r.Form.Get("until"),
		Set:             r.Form.Get("set"),
		ResumptionToken: r.Form.Get("resumptionToken"),
	}

	resp := oaipmh.NewResponse(requestBaseURL(r))
	resp.Request = req
	resp.Request.BaseURL = requestBaseURL(r)

	err := h.dispatch(r, handlerID, verb, req, resp)
	if err != nil {
		var protoErr *oaipmh.ProtocolError
		switch {
		case errors.As(err, &protoErr):
			// Per protocol, request attributes are not echoed on
			// badVerb/badArgument responses.
			if protoErr.Code == oaipmh.CodeBadVerb || protoErr.Code == oaipmh.CodeBadArgument {
				resp.Request = oaipmh.Request{BaseURL: requestBaseURL(r)}
			}
			resp.Error = &oaipmh.Error{Code: protoErr.Code, Message: protoErr.Message}
		default:
			// Configuration and infrastructure faults abort the request
			// before any protocol-level response is built.
			log.Printf("ERROR: OAI %s %s: %v", handlerID, verb, err)
			var loadErr *registry.LoadingError
			if errors.As(err, &loadErr) {
				http.Error(w, "endpoint configuration unavailable", http.StatusNotFound)
			} else {
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
	}

	writeXML(w, resp)
}

func (h *Handler) dispatch(r *http.Request, handlerID, verb string, req oaipmh.Request, resp *oaipmh.Response) error {
	ctx := r.Context()
	switch verb {
	case oaipmh.VerbIdentify:
		payload, err := h.protocol.Identify(ctx, handlerID)
		if err != nil {
			return err
		}
		resp.Identify = payload
	case oaipmh.VerbListMetadataFormats:
		payload, err := h.protocol.ListMetadataFormats(ctx, handlerID, req.Identifier)
		if err != nil {
			return err
		}
		resp.ListMetadataFormats = payload
	case oaipmh.VerbListSets:
		payload, err := h.protocol.ListSets(ctx, handlerID)
		if err != nil {
			return err
		}
		resp.ListSets = payload
	case oaipmh.VerbListRecords, oaipmh.VerbListIdentifiers:
		result, err := h.protocol.ListRecords(ctx, handlerID, usecase.ListRequest{
			MetadataPrefix:  req.MetadataPrefix,
			From:            req.From,
			Until:           req.Until,
			Set:             req.Set,
			ResumptionToken: req.ResumptionToken,
			IdentifiersOnly: verb == oaipmh.VerbListIdentifiers,
		})
		if err != nil {
			return err
		}
		if verb == oaipmh.VerbListIdentifiers {
			resp.ListIdentifiers = &oaipmh.ListIdentifiers{Headers: result.Headers, ResumptionToken: result.Token}
		} else {
			resp.ListRecords = &oaipmh.ListRecords{Records: result.Records, ResumptionToken: result.Token}
		}
	case oaipmh.VerbGetRecord:
		record, err := h.protocol.GetRecord(ctx, handlerID, req.MetadataPrefix, req.Identifier)
		if err != nil {
			return err
		}
		resp.GetRecord = &oaipmh.GetRecord{Record: *record}
	default:
		return oaipmh.Errorf(oaipmh.CodeBadVerb, "unknown or missing verb %q", verb)
	}
	return nil
}

// Reload triggers an immediate atomic reload of all handler
// configurations. Guarded by the shared admin secret.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.adminSecret == "" || r.Header.Get("X-Admin-Secret") != h.adminSecret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.registry.Reload(); err != nil {
		log.Printf("ERROR: admin reload failed: %v", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func writeXML(w http.ResponseWriter, resp *oaipmh.Response) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Printf("ERROR: encode OAI response: %v", err)
	}
}
