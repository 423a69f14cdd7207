package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func story(id, user string) Story {
	return Story{ID: id, Type: MediaTypeImage, URL: "/img/" + id, UserID: user, UserName: "name-" + user}
}

func TestGroupByUser_PreservesFirstSeenOrder(t *testing.T) {
	stories := []Story{story("1", "b"), story("2", "a"), story("3", "b"), story("4", "c"), story("5", "a")}

	groups := GroupByUser(stories, nil)

	require.Len(t, groups, 3)
	assert.Equal(t, "b", groups[0].UserID)
	assert.Equal(t, "a", groups[1].UserID)
	assert.Equal(t, "c", groups[2].UserID)

	ids := func(g UserStoryGroup) []string {
		var out []string
		for _, s := range g.Stories {
			out = append(out, s.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1", "3"}, ids(groups[0]))
	assert.Equal(t, []string{"2", "5"}, ids(groups[1]))
	assert.Equal(t, []string{"4"}, ids(groups[2]))
}

func TestGroupByUser_UnionEqualsInput(t *testing.T) {
	var stories []Story
	users := []string{"u1", "u2", "u3"}
	for i := 0; i < 30; i++ {
		stories = append(stories, story(string(rune('A'+i)), users[(i*7)%3]))
	}

	groups := GroupByUser(stories, nil)

	seen := map[string]int{}
	total := 0
	for _, g := range groups {
		for _, s := range g.Stories {
			seen[s.ID]++
			total++
			assert.Equal(t, g.UserID, s.UserID)
		}
	}
	assert.Equal(t, len(stories), total)
	for _, s := range stories {
		assert.Equal(t, 1, seen[s.ID], "story %s", s.ID)
	}
}

func TestGroupByUser_HasUnviewed(t *testing.T) {
	stories := []Story{story("1", "a"), story("2", "a"), story("3", "b")}
	viewed := map[string]bool{"1": true}
	isViewed := func(id string) bool { return viewed[id] }

	groups := GroupByUser(stories, isViewed)
	assert.True(t, groups[0].HasUnviewed)
	assert.True(t, groups[1].HasUnviewed)

	viewed["2"] = true
	groups = GroupByUser(stories, isViewed)
	assert.False(t, groups[0].HasUnviewed)
	assert.True(t, groups[1].HasUnviewed)
}

func TestGroupByUser_Empty(t *testing.T) {
	groups := GroupByUser(nil, nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestGroupByUser_Stable(t *testing.T) {
	stories := []Story{story("1", "a"), story("2", "b"), story("3", "a")}
	assert.Equal(t, GroupByUser(stories, nil), GroupByUser(stories, nil))
}

func TestFindGroup(t *testing.T) {
	groups := GroupByUser([]Story{story("1", "a"), story("2", "b")}, nil)
	assert.Equal(t, 1, FindGroup(groups, "b"))
	assert.Equal(t, -1, FindGroup(groups, "zz"))
}

func TestStory_DisplayDuration(t *testing.T) {
	s := story("1", "a")
	assert.Equal(t, DefaultImageDuration, s.DisplayDuration(DefaultImageDuration))

	s.Duration = Millis(3000)
	assert.Equal(t, 3*time.Second, s.DisplayDuration(DefaultImageDuration))

	s.Duration = Millis(0)
	assert.Equal(t, time.Duration(0), s.DisplayDuration(DefaultImageDuration))

	s.Duration = Millis(-10)
	assert.Equal(t, time.Duration(0), s.DisplayDuration(DefaultImageDuration))
}

func TestStory_Validate(t *testing.T) {
	assert.NoError(t, story("1", "a").Validate())

	bad := story("", "a")
	assert.ErrorIs(t, bad.Validate(), ErrInvalidStory)

	bad = story("1", "a")
	bad.Type = "gif"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidStory)
}
