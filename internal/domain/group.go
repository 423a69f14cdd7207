package domain

// UserStoryGroup holds all stories of one user in ingestion order.
type UserStoryGroup struct {
	UserID        string  `json:"userId"`
	UserName      string  `json:"userName"`
	UserAvatarURL string  `json:"userAvatarUrl"`
	Stories       []Story `json:"stories"`
	HasUnviewed   bool    `json:"hasUnviewed"`
}

// GroupByUser partitions stories into one group per user, ordered by the
// first appearance of each user id. The display name and avatar come from the
// user's first story. isViewed may be nil, in which case everything counts as
// unviewed.
func GroupByUser(stories []Story, isViewed func(id string) bool) []UserStoryGroup {
	if len(stories) == 0 {
		return []UserStoryGroup{}
	}

	index := make(map[string]int)
	groups := make([]UserStoryGroup, 0)
	for _, s := range stories {
		i, ok := index[s.UserID]
		if !ok {
			i = len(groups)
			index[s.UserID] = i
			groups = append(groups, UserStoryGroup{
				UserID:        s.UserID,
				UserName:      s.UserName,
				UserAvatarURL: s.UserAvatarURL,
			})
		}
		groups[i].Stories = append(groups[i].Stories, s)
		if isViewed == nil || !isViewed(s.ID) {
			groups[i].HasUnviewed = true
		}
	}
	return groups
}

// FindGroup returns the position of userID in groups, or -1.
func FindGroup(groups []UserStoryGroup, userID string) int {
	for i, g := range groups {
		if g.UserID == userID {
			return i
		}
	}
	return -1
}
