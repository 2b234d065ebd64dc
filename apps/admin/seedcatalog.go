package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/acadamier/backend/core/course"
)

type (
	catalogFile struct {
		Categories []catalogCategory `yaml:"categories"`
		Tags       []string          `yaml:"tags"`
	}

	catalogCategory struct {
		Name        string            `yaml:"name"`
		Slug        string            `yaml:"slug"`
		Subtitle    string            `yaml:"subtitle"`
		Description string            `yaml:"description"`
		Image       string            `yaml:"image"`
		Children    []catalogCategory `yaml:"children"`
	}

	seedResult struct {
		categories, tags int
	}
)

// seedCatalog creates the categories (with their children) and tags of a YAML file.
// Categories and tags that already exist are left untouched, so seeding twice is harmless.
func (cli *commandLine) seedCatalog(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrap(err, "reading catalog")
	}
	var catalog catalogFile
	if err = yaml.Unmarshal(raw, &catalog); err != nil {
		return pkgerrors.Wrap(err, "parsing catalog")
	}

	res, err := cli.seed(context.Background(), catalog)
	fmt.Printf("%d categories and %d tags created\n", res.categories, res.tags)
	return err
}

func (cli *commandLine) seed(ctx context.Context, catalog catalogFile) (seedResult, error) {
	var res seedResult

	cats, err := cli.courseSvc.QueryCategories(ctx)
	if err != nil {
		return res, pkgerrors.Wrap(err, "listing categories")
	}
	existing := make(map[string]course.Category, len(cats)) // slug: category
	for _, cat := range cats {
		existing[cat.Slug] = cat
	}

	var seedCategories func(list []catalogCategory, parentID *string) error
	seedCategories = func(list []catalogCategory, parentID *string) error {
		for _, cc := range list {
			nc := course.NewCategory{
				Name:        cc.Name,
				Slug:        cc.Slug,
				Subtitle:    cc.Subtitle,
				Description: cc.Description,
				Image:       cc.Image,
				ParentID:    parentID,
			}
			if err := nc.Validate(cli.validate); err != nil {
				return pkgerrors.Wrapf(err, "category %q", cc.Name)
			}

			cat, ok := existing[nc.Slug]
			if !ok {
				if cat, err = cli.courseSvc.CreateCategory(ctx, nc); err != nil {
					return pkgerrors.Wrapf(err, "creating category %q", nc.Name)
				}
				existing[cat.Slug] = cat
				res.categories++
			}
			id := cat.ID
			if err := seedCategories(cc.Children, &id); err != nil {
				return err
			}
		}
		return nil
	}
	if err = seedCategories(catalog.Categories, nil); err != nil {
		return res, err
	}

	tags, err := cli.courseSvc.QueryTags(ctx)
	if err != nil {
		return res, pkgerrors.Wrap(err, "listing tags")
	}
	tagNames := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagNames[strings.ToLower(tag.Name)] = true
	}
	for _, name := range catalog.Tags {
		nt := course.NewTag{Name: name}
		if err = nt.Validate(cli.validate); err != nil {
			return res, pkgerrors.Wrapf(err, "tag %q", name)
		}
		if tagNames[strings.ToLower(nt.Name)] {
			continue
		}
		if _, err = cli.courseSvc.CreateTag(ctx, nt); err != nil {
			return res, pkgerrors.Wrapf(err, "creating tag %q", nt.Name)
		}
		tagNames[strings.ToLower(nt.Name)] = true
		res.tags++
	}
	return res, nil
}
