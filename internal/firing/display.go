package firing

import "kilnworks-backend/internal/model"

// KilnView is a kiln together with its derived display status.
type KilnView struct {
	model.Kiln
	DisplayStatus model.KilnStatus `json:"displayStatus"`
	ActiveFiring  *model.Firing    `json:"activeFiring,omitempty"`
}

// Project builds a view for every kiln from a single firing listing. A kiln
// with an active firing shows in-use; otherwise its stored status shows.
func Project(kilns []model.Kiln, firings []model.Firing) []KilnView {
	active := activeFirings(firings)
	views := make([]KilnView, 0, len(kilns))
	for _, k := range kilns {
		views = append(views, view(k, active))
	}
	return views
}

func activeFirings(firings []model.Firing) map[int64]model.Firing {
	active := make(map[int64]model.Firing)
	for _, f := range firings {
		if f.Status.Active() {
			active[f.KilnID] = f
		}
	}
	return active
}

func view(kiln model.Kiln, active map[int64]model.Firing) KilnView {
	v := KilnView{Kiln: kiln, DisplayStatus: kiln.StoredStatus}
	if f, ok := active[kiln.ID]; ok {
		v.DisplayStatus = model.KilnStatusInUse
		v.ActiveFiring = &f
	}
	return v
}
