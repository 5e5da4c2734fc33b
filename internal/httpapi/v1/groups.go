package v1

import (
	"net/http"

	"github.com/google/uuid"
)

// POST /v1/groups
func (s *Server) postGroup(w http.ResponseWriter, r *http.Request) {
	req, _ := r.Context().Value(ctxKeyCreateGroup).(createGroupRequest)
	g, err := s.groups.Create(r.Context(), req.Name, req.CreatedBy)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	members, err := s.groups.Members(r.Context(), g.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toGroupResponse(g, members))
}

// GET /v1/groups?user_id=
func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxKeyListGroups).(uuid.UUID)
	groups, err := s.groups.ListForUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := listGroupsResponse{Items: make([]groupResponse, 0, len(groups))}
	for _, g := range groups {
		out.Items = append(out.Items, toGroupResponse(g, nil))
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/groups/{id}
func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	id := groupIDFrom(r)
	g, err := s.groups.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	members, err := s.groups.Members(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toGroupResponse(g, members))
}

// PATCH /v1/groups/{id}
func (s *Server) renameGroup(w http.ResponseWriter, r *http.Request) {
	req, _ := r.Context().Value(ctxKeyRenameGroup).(renameGroupRequest)
	g, err := s.groups.Rename(r.Context(), groupIDFrom(r), req.ActorID, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toGroupResponse(g, nil))
}

// POST /v1/groups/{id}/members
func (s *Server) joinGroup(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxKeyJoinGroup).(uuid.UUID)
	m, err := s.groups.Join(r.Context(), groupIDFrom(r), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toMemberResponse(m))
}

// GET /v1/groups/{id}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.groups.Members(r.Context(), groupIDFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := listMembersResponse{Items: make([]memberResponse, 0, len(members))}
	for _, m := range members {
		out.Items = append(out.Items, toMemberResponse(m))
	}
	toJSON(w, http.StatusOK, out)
}
