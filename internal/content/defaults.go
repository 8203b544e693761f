package content

// Seed values written to the document store the first time the service boots
// against an empty backend. The public site never renders an empty state.

func defaultProfile() Profile {
	return Profile{
		Name:        "Dr. Avery Lindqvist",
		Title:       "Associate Professor of Computational Biology",
		Institution: "Northfield Institute of Technology",
		Education:   "PhD, Computational Biology, Northfield Institute of Technology",
		ImageURL:    "",
		Phone:       "+1 555 0134",
		Email:       "avery.lindqvist@example.edu",
		WebsiteURL:  "",
		About: "I study computational methods for biological signal analysis. " +
			"My group develops sparse-recovery and matrix-completion techniques " +
			"and applies them to medical imaging and genomic data.",
	}
}

func defaultResearchInterests() []ResearchInterest {
	return []ResearchInterest{
		{ID: "1", Title: "Sparse Recovery"},
		{ID: "2", Title: "Low-rank Matrix Completion"},
		{ID: "3", Title: "Medical Imaging"},
		{ID: "4", Title: "Biomedical Signal Processing"},
		{ID: "5", Title: "Collaborative Filtering"},
	}
}

func defaultTeachingInterests() []TeachingInterest {
	return []TeachingInterest{
		{ID: "1", Title: "Data Structures & Algorithms"},
		{ID: "2", Title: "Statistical Learning"},
		{ID: "3", Title: "DNA Sequence Analysis"},
	}
}

func defaultPublications() []Publication {
	return []Publication{
		{
			ID:      "1",
			Title:   "Advances in Biomedical Signal Processing Techniques",
			Authors: "Lindqvist A., Kumar A., Okafor S.",
			Venue:   "IEEE Transactions on Biomedical Engineering",
			Year:    "2023",
		},
		{
			ID:      "2",
			Title:   "Applications of Matrix Completion in Genomic Data Analysis",
			Authors: "Lindqvist A., Singh R.",
			Venue:   "Computational Biology Journal",
			Year:    "2022",
		},
	}
}

func defaultTalks() []Talk {
	return []Talk{
		{
			ID:          "1",
			Title:       "Latest Trends in Biomedical Signal Processing",
			Venue:       "International Conference on Biomedical Engineering, Singapore",
			Date:        "2023-06-15",
			Description: "Invited talk on recent advancements in biomedical signal processing",
		},
	}
}

func defaultActivities() []Activity {
	return []Activity{
		{
			ID:           "1",
			Title:        "Faculty Advisor",
			Organization: "Computational Biology Student Association",
			Description:  "Mentoring students in research and academic activities",
			StartDate:    "2020-01-01",
		},
	}
}

func defaultLab() Lab {
	return Lab{
		Name:        "Biomedical Signal Processing Lab",
		Description: "Our lab develops advanced techniques for processing biomedical signals and images.",
		Research:    []string{"Signal processing algorithms", "Medical image analysis", "Machine learning in healthcare"},
		Members: []string{
			"Dr. Avery Lindqvist (PI)",
			"Dr. Nadia Haddad (Co-PI)",
			"Tomas Rivera (PhD student)",
			"Mei Chen (PhD student)",
		},
	}
}
