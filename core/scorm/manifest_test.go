package scorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest12 = `<?xml version="1.0" encoding="UTF-8"?>
<manifest identifier="course" version="1.2"
    xmlns="http://www.imsproject.org/xsd/imscp_rootv1p1p2"
    xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_rootv1p2">
  <organizations default="org-2">
    <organization identifier="org-1">
      <title>Ignored</title>
      <item identifier="i0" identifierref="r1"><title>Wrong org</title></item>
    </organization>
    <organization identifier="org-2">
      <title>Course</title>
      <item identifier="chapter-1">
        <title>Chapter 1</title>
        <item identifier="i1" identifierref="r1"><title>Intro</title></item>
        <item identifier="i2" identifierref="r2"/>
      </item>
      <item identifier="i3" identifierref="missing"><title>Dangling</title></item>
      <item identifier="i4" identifierref="r3" xml:base="part2/"><title>Quiz</title></item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="r1" type="webcontent" adlcp:scormtype="sco" href="index.html"/>
    <resource identifier="r2" type="webcontent" adlcp:scormtype="sco" href="./lessons/../lesson2.html" xml:base="content/"/>
    <resource identifier="r3" type="webcontent" adlcp:scormtype="sco" href="quiz.html" xml:base="/content"/>
    <resource identifier="r4" type="webcontent" adlcp:scormtype="asset"/>
  </resources>
</manifest>`

func TestParseManifest(t *testing.T) {
	scos, err := parseManifest(strings.NewReader(manifest12))
	require.NoError(t, err)

	assert.Equal(t, []Sco{
		{Identifier: "r1", LaunchURL: "index.html", Title: "Intro", Sequence: 0},
		{Identifier: "r2", LaunchURL: "content/lesson2.html", Title: "SCO 2", Sequence: 1},
		{Identifier: "r3", LaunchURL: "content/part2/quiz.html", Title: "Quiz", Sequence: 2},
	}, scos)
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name:     "invalid xml",
			manifest: `<manifest><organizations>`,
			wantErr:  "invalid manifest",
		},
		{
			name:     "no organization",
			manifest: `<manifest><organizations/><resources/></manifest>`,
			wantErr:  errNoOrganization.Error(),
		},
		{
			name: "unknown default organization",
			manifest: `<manifest><organizations default="nope">
				<organization identifier="org"><item identifierref="r"/></organization>
			</organizations><resources><resource identifier="r" href="a.html"/></resources></manifest>`,
			wantErr: errNoOrganization.Error(),
		},
		{
			name: "no launchable sco",
			manifest: `<manifest><organizations>
				<organization identifier="org"><item identifier="i"><title>Parent</title></item></organization>
			</organizations><resources><resource identifier="r"/></resources></manifest>`,
			wantErr: errNoScos.Error(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseManifest(strings.NewReader(tc.manifest))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseManifestFirstOrganization(t *testing.T) {
	scos, err := parseManifest(strings.NewReader(`<manifest>
		<organizations>
			<organization identifier="a"><item identifierref="r"><title>First</title></item></organization>
			<organization identifier="b"><item identifierref="r"><title>Second</title></item></organization>
		</organizations>
		<resources><resource identifier="r" href="/start.html"/></resources>
	</manifest>`))
	require.NoError(t, err)
	require.Len(t, scos, 1)
	assert.Equal(t, "First", scos[0].Title)
	assert.Equal(t, "start.html", scos[0].LaunchURL)
}

func TestNormalizeHref(t *testing.T) {
	href := func(s string) *string { return &s }

	tests := []struct {
		base string
		href *string
		want string
	}{
		{"", nil, ""},
		{"", href(""), ""},
		{"", href("index.html"), "index.html"},
		{"content", href("index.html"), "content/index.html"},
		{"content/", href("../index.html"), "index.html"},
		{"content/", href("/abs/index.html"), "abs/index.html"},
		{"/root/", href("a/./b.html"), "root/a/b.html"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, normalizeHref(tc.base, tc.href), "base=%q", tc.base)
	}
}
