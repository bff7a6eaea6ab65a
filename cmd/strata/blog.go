package main

import (
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
)

// registerBlogTypes installs the demo blog domain: authors write articles,
// articles carry tags.
func registerBlogTypes(registry *schema.Registry) error {
	author := schema.NewResourceType("Author", "author")
	author.Attributes = []string{"name", "email"}
	author.Binding = &schema.ViewsetBinding{LookupField: "pk", BaseName: "author"}

	tag := schema.NewResourceType("Tag", "tag")
	tag.Attributes = []string{"name"}
	tag.Binding = &schema.ViewsetBinding{LookupField: "pk", BaseName: "tag"}

	article := schema.NewResourceType("Article", "article")
	article.Attributes = []string{"title", "body"}
	article.Binding = &schema.ViewsetBinding{LookupField: "pk", BaseName: "article"}
	article.AddRelationship("author", &schema.Relationship{
		Cardinality: schema.One,
		TargetType:  "Author",
	})
	article.AddRelationship("tags", &schema.Relationship{
		Cardinality: schema.Many,
		TargetType:  "Tag",
	})

	for _, rt := range []*schema.ResourceType{author, tag, article} {
		if err := registry.Register(rt); err != nil {
			return err
		}
	}
	return registry.ValidateAll()
}

// seedBlogFixtures loads demo records into the in-memory store
func seedBlogFixtures(ms *store.MemStore) {
	ada := ms.Seed("authors", store.Record{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	})
	grace := ms.Seed("authors", store.Record{
		"name":  "Grace Hopper",
		"email": "grace@example.com",
	})

	compilers := ms.Seed("tags", store.Record{"name": "compilers"})
	history := ms.Seed("tags", store.Record{"name": "history"})

	ms.Seed("articles", store.Record{
		"title":  "Notes on the Analytical Engine",
		"body":   "On the use of punched cards for general computation.",
		"author": ada,
		"tags":   []store.Record{history},
	})
	ms.Seed("articles", store.Record{
		"title":  "The First Compiler",
		"body":   "A-0 translated symbolic mathematical code into machine code.",
		"author": grace,
		"tags":   []store.Record{compilers, history},
	})
}
